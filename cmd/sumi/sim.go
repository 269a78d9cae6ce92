package main

import (
	"github.com/spf13/cobra"

	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/display/sim"
	"github.com/sumireader/sumi/internal/shell"
	"github.com/sumireader/sumi/internal/storage"
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run the firmware in a desktop window",
	Long: `sim emulates the panel in a window and the buttons on the
keyboard: arrows navigate, enter selects, backspace goes back, p is
the power button.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")

		store, err := storage.Open(root)
		if err != nil {
			return err
		}

		drv := sim.NewDriver(display.PanelWidth, display.PanelHeight)
		fb := display.NewFramebuffer(display.PanelWidth, display.PanelHeight)
		core, err := shell.NewCore(store, fb, drv)
		if err != nil {
			return err
		}
		return sim.Run(core, shell.NewMachine(core), drv)
	},
}

func init() {
	simCmd.Flags().String("root", ".", "Directory standing in for the SD card")
	rootCmd.AddCommand(simCmd)
}
