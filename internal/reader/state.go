package reader

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/sumireader/sumi/internal/bmp"
	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/content"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/errs"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/input"
	"github.com/sumireader/sumi/internal/library"
	"github.com/sumireader/sumi/internal/pagecache"
	"github.com/sumireader/sumi/internal/reflow"
	"github.com/sumireader/sumi/internal/storage"
)

// Overlay selects which surface inside the reader consumes input.
type Overlay uint8

const (
	OverlayNone Overlay = iota // reading
	OverlayToc
	OverlaySettings
)

// Action tells the shell what the reader wants after handling input.
type Action uint8

const (
	ActionNone Action = iota
	ActionRedraw
	ActionExit
)

// cacheChunk is how many pages a single create or extend pass commits
// before checking for cancellation.
const cacheChunk = 8

const loadFailedMessage = "Failed to load page"

// State is the reading session: one open book, its pagination caches,
// the background worker and the navigation position.
//
// Ownership rule: the cache and the paginator belong to either the UI
// goroutine or the worker, never both. Every UI path that touches them
// goes through ownCache, which quiesces the worker first.
type State struct {
	store    *storage.Store
	handle   *content.Handle
	cfg      config.RenderConfig
	settings config.Settings
	mgr      *fonts.Manager
	face     *fonts.Face
	fb       *display.Framebuffer
	drv      display.Driver

	policy   *RefreshPolicy
	task     *Task
	renderer *PageRenderer
	xtcr     *XtcRenderer

	overlay     Overlay
	tocSel      int
	settingsSel int

	// Reflowable position. onCover is the distinguished pre-section
	// cover page of an EPUB.
	spineIndex  int
	sectionPage int
	clampToLast bool
	onCover     bool

	flatPage uint32 // pre-paginated position

	cache        *pagecache.Cache
	paginator    *reflow.Layout
	parserCloser io.Closer
	curSection   int
	resetNeeded  bool

	index   *library.Index
	recents *library.Recents

	failedOnce bool // one retry after clearing a bad cache
}

// Deps carries the shell-owned collaborators into a reading session.
type Deps struct {
	Store    *storage.Store
	Fonts    *fonts.Manager
	Fb       *display.Framebuffer
	Driver   display.Driver
	Settings config.Settings
	Index    *library.Index
	Recents  *library.Recents
}

// Open starts a session on the given book, restoring saved progress and
// recording the open in the recent-books list.
func Open(d Deps, bookPath string) (*State, error) {
	h, err := content.Open(d.Store, bookPath)
	if err != nil {
		return nil, err
	}

	cfg := d.Settings.Render(uint16(d.Fb.W), uint16(d.Fb.H))
	face, err := d.Fonts.Acquire(cfg.FontID, cfg.FontSize)
	if err != nil {
		h.Close()
		return nil, err
	}

	s := &State{
		store:      d.Store,
		handle:     h,
		cfg:        cfg,
		settings:   d.Settings,
		mgr:        d.Fonts,
		face:       face,
		fb:         d.Fb,
		drv:        d.Driver,
		policy:     NewRefreshPolicy(d.Settings.PagesPerRefresh),
		task:       &Task{},
		index:      d.Index,
		recents:    d.Recents,
		curSection: -1,
	}
	s.renderer = NewPageRenderer(d.Fb, face)
	s.xtcr = NewXtcRenderer(d.Fb)

	p := library.LoadProgress(s.progressPath()).Clamp(int(h.PageCount()))
	switch h.Type() {
	case content.TypeXtc:
		s.flatPage = p.FlatPage
	default:
		s.spineIndex = int(p.SpineIndex)
		s.sectionPage = int(p.SectionPage)
		if h.Type() == content.TypeEpub && cfg.ShowImages &&
			p.SpineIndex == 0 && p.SectionPage == 0 {
			s.onCover = true
		}
	}

	meta := h.Metadata()
	s.recents.Touch(library.RecentBook{
		Path:            h.Path(),
		Title:           meta.Title,
		Author:          meta.Author,
		LastAccess:      uint32(time.Now().Unix()),
		ProgressPercent: uint16(meta.ProgressPercent),
	})
	return s, nil
}

func (s *State) progressPath() string {
	return filepath.Join(s.handle.CacheDir(), "progress.bin")
}

// Handle exposes the open book to the shell for status display.
func (s *State) Handle() *content.Handle { return s.handle }

// HandleInput processes one logical button event. Overlays consume
// input exclusively while active.
func (s *State) HandleInput(ev input.Event) Action {
	if ev.Type == input.Release {
		return ActionNone
	}
	switch s.overlay {
	case OverlayToc:
		return s.tocInput(ev)
	case OverlaySettings:
		return s.settingsInput(ev)
	}

	if ev.Type == input.LongPress {
		switch ev.Button {
		case input.Center:
			return s.manualRefresh()
		case input.Back:
			return ActionExit
		}
		return ActionNone
	}
	switch ev.Button {
	case input.Right, input.Down:
		return s.NextPage()
	case input.Left, input.Up:
		return s.PrevPage()
	case input.Center:
		if s.handle.TocCount() > 0 {
			s.overlay = OverlayToc
			s.tocSel = 0
			return ActionRedraw
		}
		s.overlay = OverlaySettings
		s.settingsSel = 0
		return ActionRedraw
	case input.Back:
		return ActionExit
	}
	return ActionNone
}

// NextPage advances one page. At the very end of the book it is a
// no-op.
func (s *State) NextPage() Action {
	if s.handle.Type() == content.TypeXtc {
		if s.flatPage+1 >= s.handle.PageCount() {
			return ActionNone
		}
		s.flatPage++
		return ActionRedraw
	}

	if s.onCover {
		s.onCover = false
		s.sectionPage = 0
		return ActionRedraw
	}

	s.ownCache()
	pc := 0
	partial := true
	if s.cache != nil && s.curSection == s.spineIndex {
		pc = s.cache.PageCount()
		partial = s.cache.IsPartial()
	}
	switch {
	case s.sectionPage < pc-1:
		s.sectionPage++
	case partial:
		// Rendering will extend the cache to reach this page.
		s.sectionPage++
	case s.handle.Type() == content.TypeEpub && s.spineIndex+1 < int(s.handle.PageCount()):
		s.spineIndex++
		s.sectionPage = 0
		s.resetNeeded = true
	default:
		return ActionNone
	}
	return ActionRedraw
}

// PrevPage goes back one page. Backing out of the first page of a
// section moves to the previous section, clamped to its last page once
// that section is fully paginated.
func (s *State) PrevPage() Action {
	if s.handle.Type() == content.TypeXtc {
		if s.flatPage == 0 {
			return ActionNone
		}
		s.flatPage--
		return ActionRedraw
	}

	if s.onCover {
		return ActionNone
	}
	if s.sectionPage > 0 {
		s.sectionPage--
		return ActionRedraw
	}
	if s.spineIndex == 0 {
		if s.handle.Type() == content.TypeEpub && s.cfg.ShowImages {
			s.onCover = true
			return ActionRedraw
		}
		return ActionNone
	}
	s.spineIndex--
	s.sectionPage = 0
	s.clampToLast = true
	s.resetNeeded = true
	return ActionRedraw
}

func (s *State) manualRefresh() Action {
	if err := s.drv.Refresh(s.fb, s.policy.Manual()); err != nil {
		log.Printf("warning: manual refresh failed: %v", err)
	}
	return ActionNone
}

// Render draws the current position and refreshes the panel, then
// restarts background pagination for whatever section is now current.
func (s *State) Render() error {
	switch s.overlay {
	case OverlayToc:
		s.drawToc()
		return s.drv.Refresh(s.fb, display.Fast)
	case OverlaySettings:
		s.drawSettings()
		return s.drv.Refresh(s.fb, display.Fast)
	}

	var err error
	switch {
	case s.handle.Type() == content.TypeXtc:
		err = s.renderXtc()
	case s.onCover:
		err = s.renderCover()
	default:
		err = s.renderCached()
	}
	if err != nil {
		return err
	}
	return s.drv.Refresh(s.fb, s.policy.Next())
}

func (s *State) renderXtc() error {
	res := s.xtcr.RenderPage(s.handle.Xtc(), s.flatPage, func(fb *display.Framebuffer) {
		if rerr := s.drv.Refresh(fb, display.Fast); rerr != nil {
			log.Printf("warning: grayscale pass refresh failed: %v", rerr)
		}
	})
	switch res {
	case RenderSuccess:
		return nil
	case RenderEndOfBook:
		s.flatPage = 0
		s.renderer.DrawMessage(loadFailedMessage)
		return nil
	default:
		s.renderer.DrawMessage(loadFailedMessage)
		return nil
	}
}

func (s *State) renderCover() error {
	path, err := s.handle.GenerateCover()
	if err != nil || path == "" {
		// No usable cover; fall through to the first page.
		s.onCover = false
		return s.renderCached()
	}
	data, err := storage.ReadFile(path)
	if err != nil {
		s.onCover = false
		return s.renderCached()
	}
	img, err := bmp.Decode1(data)
	if err != nil {
		s.onCover = false
		return s.renderCached()
	}
	s.fb.Clear(true)
	s.fb.Blit1bpp(img.Bits, img.Stride, (s.fb.W-img.W)/2, (s.fb.H-img.H)/2, img.W, img.H)
	return nil
}

// renderCached is the reflowable path: quiesce the worker, make sure
// the needed page is cached, draw it, restart the worker.
func (s *State) renderCached() error {
	s.ownCache()
	defer s.startBackground()

	if err := s.ensureSection(); err != nil {
		return err
	}
	if s.clampToLast {
		if err := s.completeSection(); err != nil {
			s.renderer.DrawMessage(loadFailedMessage)
			return nil
		}
		s.clampToLast = false
		if n := s.cache.PageCount(); n > 0 {
			s.sectionPage = n - 1
		} else {
			s.sectionPage = 0
		}
	}
	if err := s.ensurePage(s.sectionPage); err != nil {
		s.renderer.DrawMessage(loadFailedMessage)
		return nil
	}

	if s.cache.PageCount() == 0 && !s.cache.IsPartial() {
		// Fully paginated empty section renders one blank page.
		s.fb.Clear(true)
		return nil
	}
	if s.sectionPage >= s.cache.PageCount() {
		s.sectionPage = s.cache.PageCount() - 1
	}
	page, err := s.cache.LoadPage(s.sectionPage)
	if err != nil {
		// A cache that indexes a page it cannot produce is corrupt:
		// drop it and retry once from a clean slate.
		log.Printf("warning: page %d unreadable, clearing cache: %v", s.sectionPage, err)
		if cerr := s.cache.Clear(); cerr != nil {
			log.Printf("warning: failed to clear cache: %v", cerr)
		}
		s.closeSection()
		if s.failedOnce {
			s.failedOnce = false
			s.renderer.DrawMessage(loadFailedMessage)
			return nil
		}
		s.failedOnce = true
		return s.renderCached()
	}
	s.failedOnce = false
	s.renderer.Draw(page)
	return nil
}

// ensureSection opens the cache and paginator for the current section.
func (s *State) ensureSection() error {
	if s.cache != nil && s.curSection == s.spineIndex && !s.resetNeeded {
		return nil
	}
	s.closeSection()

	s.cache = pagecache.New(s.handle.CacheFileFor(s.spineIndex, s.cfg))
	if err := storage.MkdirAll(filepath.Dir(s.cache.Path())); err != nil {
		return err
	}
	if !s.cache.Load(s.cfg) {
		// Missing or stale fingerprint: discard silently, repaginate.
		if err := s.cache.Clear(); err != nil {
			log.Printf("warning: failed to discard stale cache: %v", err)
		}
	}

	pag, closer, err := s.handle.NewPaginator(s.spineIndex, s.cfg, s.face)
	if err != nil {
		return err
	}
	if n := s.cache.PageCount(); n > 0 && s.cache.IsPartial() {
		if err := pag.SkipPages(n); err != nil {
			closer.Close()
			return err
		}
	}
	s.paginator = pag
	s.parserCloser = closer
	s.curSection = s.spineIndex
	s.resetNeeded = false
	return nil
}

// ensurePage paginates synchronously until the wanted page exists or
// the document ends.
func (s *State) ensurePage(page int) error {
	if !s.cache.Loaded() && s.cache.PageCount() == 0 {
		if err := s.cache.Create(s.paginator, s.cfg, cacheChunk, nil); err != nil {
			return err
		}
	}
	for page >= s.cache.PageCount() && s.cache.IsPartial() {
		before := s.cache.PageCount()
		if err := s.cache.Extend(s.paginator, cacheChunk, nil); err != nil {
			return err
		}
		if s.cache.PageCount() == before {
			break
		}
	}
	return nil
}

// completeSection paginates the current section to the end.
func (s *State) completeSection() error {
	if err := s.ensurePage(0); err != nil {
		return err
	}
	for s.cache.IsPartial() {
		before := s.cache.PageCount()
		if err := s.cache.Extend(s.paginator, cacheChunk, nil); err != nil {
			return err
		}
		if s.cache.PageCount() == before {
			return errs.E(errs.ParseFailed, "reader.completeSection",
				fmt.Errorf("pagination stalled at page %d", before))
		}
	}
	return nil
}

// ownCache asserts UI-side ownership of the cache and paginator by
// quiescing the worker.
func (s *State) ownCache() {
	s.task.Stop()
	if s.task.Running() {
		log.Printf("warning: touching page cache while worker still running")
	}
}

// startBackground respawns the worker to finish paginating the current
// section while the user reads.
func (s *State) startBackground() {
	if s.cache == nil || !s.cache.IsPartial() || s.paginator == nil {
		return
	}
	cache, pag := s.cache, s.paginator
	err := s.task.Start(func(shouldStop func() bool) {
		for !shouldStop() && cache.IsPartial() {
			before := cache.PageCount()
			if err := cache.Extend(pag, cacheChunk, shouldStop); err != nil {
				log.Printf("warning: background pagination stopped: %v", err)
				return
			}
			if cache.PageCount() == before {
				return
			}
		}
	})
	if err != nil {
		log.Printf("warning: failed to start background pagination: %v", err)
	}
}

func (s *State) closeSection() {
	if s.parserCloser != nil {
		s.parserCloser.Close()
		s.parserCloser = nil
	}
	s.paginator = nil
	s.cache = nil
	s.curSection = -1
}

// JumpTo repositions via a table-of-contents entry.
func (s *State) JumpTo(entry content.TocEntry) {
	if s.handle.Type() == content.TypeXtc {
		if entry.PageIndex < s.handle.PageCount() {
			s.flatPage = entry.PageIndex
		}
		return
	}
	s.ownCache()
	s.onCover = false
	s.spineIndex = int(entry.PageIndex)
	s.sectionPage = 0
	s.clampToLast = false
	s.resetNeeded = true
}

// Progress snapshots the current position for persistence.
func (s *State) Progress() library.Progress {
	if s.handle.Type() == content.TypeXtc {
		return library.Progress{FlatPage: s.flatPage}
	}
	return library.Progress{
		SpineIndex:  uint16(s.spineIndex),
		SectionPage: uint16(s.sectionPage),
	}
}

// SaveState persists progress and the library index entry. Called on
// exit and before sleep.
func (s *State) SaveState() {
	if err := library.SaveProgress(s.progressPath(), s.Progress()); err != nil {
		log.Printf("warning: failed to save progress: %v", err)
	}

	var cur, total uint16
	if s.handle.Type() == content.TypeXtc {
		cur = uint16(s.flatPage)
		total = uint16(s.handle.PageCount())
	} else {
		cur = uint16(s.spineIndex)
		total = uint16(s.handle.PageCount())
	}
	s.index.Update(s.handle.Path(), cur, total, uint8(s.handle.Metadata().Hint))
	if err := s.index.Save(); err != nil {
		log.Printf("warning: failed to save library index: %v", err)
	}
	if err := s.recents.Save(); err != nil {
		log.Printf("warning: failed to save recent books: %v", err)
	}
}

// Close stops the worker, persists state and releases every resource.
func (s *State) Close() {
	s.ownCache()
	s.SaveState()
	s.closeSection()
	if err := s.handle.Close(); err != nil {
		log.Printf("warning: failed to close book: %v", err)
	}
	s.mgr.Release(s.face)
}
