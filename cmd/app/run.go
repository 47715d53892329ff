package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.design/x/hotkey/mainthread"

	"github.com/local/screenassist/internal/capture"
	"github.com/local/screenassist/internal/hotkey"
	"github.com/local/screenassist/internal/ocr"
	"github.com/local/screenassist/internal/pipeline"
	"github.com/local/screenassist/internal/present"
	"github.com/local/screenassist/internal/selector"
	"github.com/local/screenassist/internal/server"
	"github.com/local/screenassist/internal/statuscheck"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Listen for hotkeys and control requests until quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// serve runs the hotkey loop. Hotkey registration needs the OS main thread
// on macOS, so the body runs under mainthread.Init.
func serve(ctx context.Context) error {
	var err error
	mainthread.Init(func() { err = serveMain(ctx) })
	return err
}

func serveMain(parent context.Context) error {
	a := newApp()
	defer a.close()

	console := present.NewConsole(os.Stdout)
	p, err := a.newPipeline(console)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("pipeline close")
		}
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sel := selector.New(p.SetRegion)
	hk, hkErr := hotkey.Start([]hotkey.Action{
		{Name: "scan", Binding: a.cfg.Hotkeys.Scan, Handler: func() { p.Trigger(pipeline.Trigger{}) }},
		{Name: "toggle", Binding: a.cfg.Hotkeys.Toggle, Handler: func() {
			// toggle doubles as Escape while a region is half marked
			if sel.Pending() {
				sel.Cancel()
				return
			}
			console.Toggle()
		}},
		{Name: "region", Binding: a.cfg.Hotkeys.Region, Handler: sel.Mark},
		{Name: "quit", Binding: a.cfg.Hotkeys.Quit, Handler: stop},
	})
	if hkErr != nil {
		if a.cfg.Server.Addr == "" {
			return hkErr
		}
		log.Error().Err(hkErr).Msg("global hotkeys unavailable; control server only")
	} else {
		defer func() {
			if err := hk.Stop(); err != nil {
				log.Warn().Err(err).Msg("hotkey unregister")
			}
		}()
	}

	// nil when the control server is disabled; a nil channel never fires
	var srvDone chan error
	if addr := a.cfg.Server.Addr; addr != "" {
		srvDone = make(chan error, 1)
		mux := http.NewServeMux()
		server.New(p, server.Options{
			Toggle: console.Toggle,
			Checks: statuscheck.New(statuscheck.Options{
				BaseURL:            a.cfg.AI.BaseURL,
				Token:              a.cfg.AI.Token,
				OCREnabled:         a.cfg.OCR.Enabled,
				Languages:          a.cfg.OCR.Languages,
				Displays:           capture.NumDisplays,
				AvailableLanguages: ocr.AvailableLanguages,
			}),
		}).RegisterRoutes(mux)
		go func() { srvDone <- server.ListenAndServe(ctx, addr, mux) }()
	}

	log.Info().Msg("ready")
	select {
	case <-ctx.Done():
		if srvDone != nil {
			if err := <-srvDone; err != nil {
				log.Warn().Err(err).Msg("control server shutdown")
			}
		}
	case err := <-srvDone:
		if err != nil {
			log.Error().Err(err).Msg("control server error")
			return err
		}
		<-ctx.Done()
	}
	log.Info().Msg("shutdown complete")
	return nil
}
