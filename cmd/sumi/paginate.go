package main

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sumireader/sumi/internal/config"
	"github.com/sumireader/sumi/internal/content"
	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/fonts"
	"github.com/sumireader/sumi/internal/pagecache"
	"github.com/sumireader/sumi/internal/storage"
)

var paginateCmd = &cobra.Command{
	Use:   "paginate <book>",
	Short: "Paginate a book into its page cache without the UI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		fontPath, _ := cmd.Flags().GetString("font")
		fontSize, _ := cmd.Flags().GetUint8("size")

		store, err := storage.Open(root)
		if err != nil {
			return err
		}

		mgr := fonts.NewManager()
		mgr.Register(fonts.Set{ID: "cli", Paths: [4]string{fontPath}})
		face, err := mgr.Acquire("cli", fontSize)
		if err != nil {
			return fmt.Errorf("failed to load font %s: %w", fontPath, err)
		}
		defer mgr.Release(face)

		h, err := content.Open(store, args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		if h.Type() == content.TypeXtc {
			return fmt.Errorf("%s is pre-paginated, nothing to do", args[0])
		}

		settings := config.DefaultSettings()
		settings.FontID = "cli"
		settings.FontSize = fontSize
		cfg := settings.Render(display.PanelWidth, display.PanelHeight)

		sections := int(h.PageCount())
		total := 0
		for sec := 0; sec < sections; sec++ {
			pag, closer, err := h.NewPaginator(sec, cfg, face)
			if err != nil {
				return err
			}
			cache := pagecache.New(h.CacheFileFor(sec, cfg))
			if err := storage.MkdirAll(filepath.Dir(cache.Path())); err != nil {
				closer.Close()
				return err
			}
			if cache.Load(cfg) && !cache.IsPartial() {
				log.Printf("section %d: cache hit, %d pages", sec, cache.PageCount())
				total += cache.PageCount()
				closer.Close()
				continue
			}
			if err := cache.Create(pag, cfg, 0, nil); err != nil {
				closer.Close()
				return fmt.Errorf("section %d: %w", sec, err)
			}
			log.Printf("section %d: %d pages", sec, cache.PageCount())
			total += cache.PageCount()
			closer.Close()
		}
		log.Printf("done: %d pages in %s", total, h.CacheDir())
		return nil
	},
}

func init() {
	paginateCmd.Flags().String("root", ".", "Directory standing in for the SD card")
	paginateCmd.Flags().String("font", "", "Path to a TTF/OTF font file")
	paginateCmd.Flags().Uint8("size", 2, "Font size index (0-4)")
	paginateCmd.MarkFlagRequired("font")
	rootCmd.AddCommand(paginateCmd)
}
