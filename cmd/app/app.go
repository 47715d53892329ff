package main

import (
	"github.com/rs/zerolog/log"

	"github.com/local/screenassist/internal/ai"
	"github.com/local/screenassist/internal/capture"
	cfgpkg "github.com/local/screenassist/internal/config"
	logpkg "github.com/local/screenassist/internal/logger"
	mpkg "github.com/local/screenassist/internal/metrics"
	"github.com/local/screenassist/internal/ocr"
	"github.com/local/screenassist/internal/pipeline"
)

// app holds what every command needs: config, logging and the capture device.
type app struct {
	cfg    cfgpkg.Config
	screen *capture.Screen
}

func newApp() *app {
	cfg := cfgpkg.FromEnv()

	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		log.Warn().Err(err).Msg("file logging disabled")
	}
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	return &app{
		cfg:    cfg,
		screen: capture.NewScreen(capture.Options{Display: cfg.Capture.Display, MaxDimension: cfg.Capture.MaxDimension}),
	}
}

// newPipeline builds the AI client and OCR engine and wires them to sink.
// A missing token is a configuration error and nothing is started.
func (a *app) newPipeline(sink pipeline.Sink) (*pipeline.Pipeline, error) {
	client, err := ai.NewClient(ai.Options{
		Token:       a.cfg.AI.Token,
		BaseURL:     a.cfg.AI.BaseURL,
		Model:       a.cfg.AI.Model,
		Temperature: a.cfg.AI.Temperature,
		MaxTokens:   a.cfg.AI.MaxTokens,
		Timeout:     a.cfg.AI.Timeout,
	})
	if err != nil {
		return nil, err
	}
	textOnly, err := a.cfg.TextOnly(ai.VisionCapable)
	if err != nil {
		return nil, err
	}
	mpkg.Init()

	deps := pipeline.Dependencies{Capture: a.screen, AI: client, Sink: sink}
	if a.cfg.OCR.Enabled {
		deps.Extractor = ocr.NewTesseract(a.cfg.OCR.Languages)
	}

	log.Info().
		Str("model", client.Model()).
		Bool("vision", !textOnly).
		Bool("ocr", a.cfg.OCR.Enabled).
		Msg("pipeline ready")

	return pipeline.New(deps, pipeline.Options{
		TextOnly:          textOnly,
		VisionInstruction: a.cfg.AI.VisionInstruction,
		TextInstruction:   a.cfg.AI.TextInstruction,
		DefaultRegion:     a.cfg.Capture.Region,
	}), nil
}

func (a *app) close() {
	_ = a.screen.Close()
	logpkg.Close()
}
