package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/sumireader/sumi/internal/display"
	"github.com/sumireader/sumi/internal/display/epd"
	"github.com/sumireader/sumi/internal/input/evdevin"
	"github.com/sumireader/sumi/internal/shell"
	"github.com/sumireader/sumi/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the firmware on device hardware",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")
		spiPort, _ := cmd.Flags().GetString("spi")

		store, err := storage.Open(root)
		if err != nil {
			return fmt.Errorf("SD card not found at %s: %w", root, err)
		}

		cfg := epd.DefaultConfig()
		if spiPort != "" {
			cfg.SPIPort = spiPort
		}
		panel, err := epd.Open(cfg)
		if err != nil {
			return fmt.Errorf("display bring-up failed: %w", err)
		}
		defer panel.Close()
		if err := panel.Init(); err != nil {
			return fmt.Errorf("display init failed: %w", err)
		}

		fb := display.NewFramebuffer(display.PanelWidth, display.PanelHeight)
		core, err := shell.NewCore(store, fb, panel)
		if err != nil {
			return err
		}

		buttons, err := evdevin.Open(core.Queue, core.MapButton)
		if err != nil {
			return err
		}
		defer buttons.Close()
		buttons.Run()

		machine := shell.NewMachine(core)
		machine.Start()
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for range tick.C {
			machine.Tick()
			if core.Done() {
				break
			}
		}
		log.Printf("shutting down")
		return nil
	},
}

func init() {
	runCmd.Flags().String("root", "/mnt/sd", "SD card mount point")
	runCmd.Flags().String("spi", "", "SPI port override (default SPI0.0)")
	rootCmd.AddCommand(runCmd)
}
