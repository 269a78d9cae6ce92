package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sumi",
	Short: "E-ink e-reader firmware",
	Long: `sumi is the firmware of a battery-powered monochrome e-ink
e-reader. It reads EPUB, XTC, TXT and Markdown books from an SD card,
paginates them in the background, and drives a 480x800 panel.

Run it on the device with "sumi run", or on a desktop with "sumi sim".`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
