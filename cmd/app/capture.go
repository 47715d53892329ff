package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/local/screenassist/internal/capture"
)

func captureCmd() *cobra.Command {
	var out string
	var regionFlag string

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Save a screenshot as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			region, err := capture.ParseRegion(regionFlag)
			if err != nil {
				return err
			}
			a := newApp()
			defer a.close()
			if region == nil {
				region = a.cfg.Capture.Region
			}

			shot, err := a.screen.Capture(cmd.Context(), region)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, shot.PNG, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			b := shot.Image.Bounds()
			log.Info().Str("file", out).Int("width", b.Dx()).Int("height", b.Dy()).Msg("screenshot saved")
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "screenshot.png", "Output file")
	cmd.Flags().StringVar(&regionFlag, "region", "", "Capture region as x,y,width,height")

	return cmd
}
