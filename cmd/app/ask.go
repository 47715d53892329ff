package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/local/screenassist/internal/capture"
	"github.com/local/screenassist/internal/pipeline"
	"github.com/local/screenassist/internal/present"
)

func askCmd() *cobra.Command {
	var textMode bool
	var regionFlag string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Capture once, print the answer and exit",
		Long: `Capture the screen (or --region), ask the model and print its answer.

Exits non-zero when capture, extraction or the request fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			region, err := capture.ParseRegion(regionFlag)
			if err != nil {
				return err
			}
			mode := pipeline.ModeAuto
			if textMode {
				mode = pipeline.ModeText
			}

			a := newApp()
			defer a.close()

			rec := present.NewRecorder(false)
			p, err := a.newPipeline(rec)
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			p.Trigger(pipeline.Trigger{Mode: mode, Region: region})
			select {
			case <-rec.Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			p.Wait()

			last, _ := rec.Last()
			if last.Kind == present.EventError {
				fmt.Fprintln(os.Stderr, last.Text)
				return errors.New("no answer")
			}
			fmt.Fprintln(cmd.OutOrStdout(), last.Text)
			return nil
		},
	}

	cmd.Flags().BoolVar(&textMode, "text", false, "Send OCR text instead of the image")
	cmd.Flags().StringVar(&regionFlag, "region", "", "Capture region as x,y,width,height")

	return cmd
}
