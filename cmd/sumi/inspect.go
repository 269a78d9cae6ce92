package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sumireader/sumi/internal/content"
	"github.com/sumireader/sumi/internal/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <book>",
	Short: "Print metadata and table of contents of a book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")

		store, err := storage.Open(root)
		if err != nil {
			return err
		}
		h, err := content.Open(store, args[0])
		if err != nil {
			return err
		}
		defer h.Close()

		meta := h.Metadata()
		fmt.Printf("Type:    %s\n", meta.Type)
		fmt.Printf("Title:   %s\n", meta.Title)
		if meta.Author != "" {
			fmt.Printf("Author:  %s\n", meta.Author)
		}
		switch h.Type() {
		case content.TypeEpub:
			fmt.Printf("Spine:   %d sections\n", h.PageCount())
		case content.TypeXtc:
			fmt.Printf("Pages:   %d\n", h.PageCount())
			fmt.Printf("Size:    %dx%d\n", h.Xtc().Width(), h.Xtc().Height())
			fmt.Printf("Gray:    %v\n", h.Xtc().Grayscale())
		default:
			fmt.Printf("Bytes:   %d\n", meta.TotalPages)
		}
		fmt.Printf("Cache:   %s\n", h.CacheDir())

		if n := h.TocCount(); n > 0 {
			fmt.Println("Contents:")
			for i := 0; i < n; i++ {
				e, err := h.TocEntry(i)
				if err != nil {
					break
				}
				fmt.Printf("  %s%s (%d)\n", strings.Repeat("  ", int(e.Depth)), e.Title, e.PageIndex)
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().String("root", ".", "Directory standing in for the SD card")
	rootCmd.AddCommand(inspectCmd)
}
