package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sumireader/sumi/internal/library"
	"github.com/sumireader/sumi/internal/storage"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Print the on-card library index and recent books",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")

		store, err := storage.Open(root)
		if err != nil {
			return err
		}

		recents := library.OpenRecents(store.SumiPath("recent.bin"))
		fmt.Printf("Recent books (%d):\n", len(recents.Books()))
		for _, b := range recents.Books() {
			when := time.Unix(int64(b.LastAccess), 0).Format("2006-01-02 15:04")
			fmt.Printf("  %3d%%  %s  %s\n", b.ProgressPercent, when, b.Path)
		}

		idx := library.OpenIndex(store.SumiPath("library.bin"))
		fmt.Printf("Library index (%d entries):\n", idx.Len())
		return nil
	},
}

func init() {
	libraryCmd.Flags().String("root", ".", "Directory standing in for the SD card")
	rootCmd.AddCommand(libraryCmd)
}
