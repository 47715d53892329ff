// Package pipeline runs the capture -> prompt -> answer flow for one trigger
// at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/screenassist/internal/ai"
	"github.com/local/screenassist/internal/capture"
	"github.com/local/screenassist/internal/errs"
	mpkg "github.com/local/screenassist/internal/metrics"
	"github.com/local/screenassist/internal/ocr"
)

// Dependencies are the collaborators a Pipeline drives. Extractor may be nil,
// in which case text-mode runs fail with an extraction error.
type Dependencies struct {
	Capture   capture.Provider
	Extractor ocr.Extractor
	AI        Completer
	Sink      Sink
}

// Options tunes mode selection and prompts.
type Options struct {
	// TextOnly makes ModeAuto triggers use OCR text. Set it when the model
	// cannot take images.
	TextOnly          bool
	VisionInstruction string
	TextInstruction   string
	DefaultRegion     *capture.Region
}

// Pipeline is single-flight: a trigger arriving while a run is in progress is
// dropped, never queued, and does not disturb the run.
type Pipeline struct {
	deps Dependencies
	opts Options

	state  atomic.Int32
	closed atomic.Bool
	region atomic.Pointer[capture.Region]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a pipeline. Capture, AI and Sink are required.
func New(deps Dependencies, opts Options) *Pipeline {
	if deps.Capture == nil || deps.AI == nil || deps.Sink == nil {
		panic("pipeline: Capture, AI and Sink are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{deps: deps, opts: opts, ctx: ctx, cancel: cancel}
	p.SetRegion(opts.DefaultRegion)
	mpkg.SetPipelineState(int(Idle))
	return p
}

// State returns the current run state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// SetRegion replaces the active capture region. nil means the primary
// display.
func (p *Pipeline) SetRegion(r *capture.Region) {
	if r == nil {
		p.region.Store(nil)
		log.Info().Msg("capture region reset to primary display")
		return
	}
	cp := *r
	p.region.Store(&cp)
	log.Info().Str("region", cp.String()).Msg("capture region updated")
}

// Region returns a copy of the active region, or nil for the primary display.
func (p *Pipeline) Region() *capture.Region {
	r := p.region.Load()
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Trigger starts a run on its own goroutine and returns immediately. It
// reports false when the trigger was dropped because a run is in flight or
// the pipeline is closed.
func (p *Pipeline) Trigger(t Trigger) bool {
	if p.closed.Load() {
		mpkg.IncTrigger(false)
		return false
	}
	if !p.state.CompareAndSwap(int32(Idle), int32(Capturing)) {
		mpkg.IncTrigger(false)
		log.Debug().Str("state", p.State().String()).Msg("trigger dropped: run in flight")
		return false
	}
	mpkg.IncTrigger(true)
	mpkg.SetPipelineState(int(Capturing))

	p.wg.Add(1)
	go p.run(uuid.NewString(), t)
	return true
}

// Wait blocks until the in-flight run, if any, has published its terminal
// event. It must not race with Trigger.
func (p *Pipeline) Wait() { p.wg.Wait() }

// Close rejects further triggers, aborts the in-flight call and releases the
// capture device and OCR engine. It does not wait for the worker.
func (p *Pipeline) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	var errList []error
	if err := p.deps.Capture.Close(); err != nil {
		errList = append(errList, fmt.Errorf("close capture: %w", err))
	}
	if c, ok := p.deps.Extractor.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errList = append(errList, fmt.Errorf("close extractor: %w", err))
		}
	}
	return errors.Join(errList...)
}

func (p *Pipeline) selectMode(m Mode) Mode {
	switch m {
	case ModeText, ModeVision:
		return m
	}
	if p.opts.TextOnly {
		return ModeText
	}
	return ModeVision
}

// run owns the state between the CAS in Trigger and the final Idle store.
// Idle is restored on every exit path, after the terminal event on normal
// returns.
func (p *Pipeline) run(id string, t Trigger) {
	defer p.wg.Done()
	defer func() {
		p.state.Store(int32(Idle))
		mpkg.SetPipelineState(int(Idle))
	}()

	mode := p.selectMode(t.Mode)
	logger := log.With().Str("run_id", id).Str("mode", mode.String()).Logger()
	sink := p.deps.Sink

	var published, hidden bool
	finish := func(result string, publish func()) {
		if published {
			return
		}
		published = true
		mpkg.IncRun(mode.String(), result)
		publish()
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		logger.Error().Interface("panic", r).Msg("run panicked")
		// A sink that panics while publishing must not take the process down.
		defer func() {
			if r2 := recover(); r2 != nil {
				logger.Error().Interface("panic", r2).Msg("sink panicked while reporting a failure")
			}
		}()
		if hidden {
			sink.Show()
		}
		msg := fmt.Sprintf("%v\n\nDetails:\n%s", r, debug.Stack())
		finish("panic", func() { sink.ShowError(msg) })
	}()

	region := t.Region
	if region == nil {
		region = p.Region()
	}

	// The sink must not appear in its own screenshot.
	if sink.Visible() {
		sink.Hide()
		hidden = true
	}
	start := time.Now()
	shot, err := p.deps.Capture.Capture(p.ctx, region)
	mpkg.ObserveCapture(time.Since(start))
	if hidden {
		sink.Show()
		hidden = false
	}
	if err != nil {
		if !errs.Is(err, errs.Capture) {
			err = errs.New(errs.Capture, "capture", err)
		}
		logEvent(logger, err).Msg("capture failed")
		finish(errs.Capture.String(), func() { sink.ShowError(errs.Message(err)) })
		return
	}

	p.state.Store(int32(AwaitingAnswer))
	mpkg.SetPipelineState(int(AwaitingAnswer))
	sink.ShowLoading()

	messages, err := p.buildMessages(mode, shot)
	if err != nil {
		logEvent(logger, err).Msg("building request failed")
		finish(errs.KindOf(err).String(), func() { sink.ShowError(errs.Message(err)) })
		return
	}

	res := p.deps.AI.Complete(p.ctx, messages)
	if !res.OK() {
		logEvent(logger, res.Err).Msg("run failed")
		finish(errs.KindOf(res.Err).String(), func() { sink.ShowError(errs.Message(res.Err)) })
		return
	}
	logger.Info().Int("chars", len(res.Answer)).Dur("took", time.Since(start)).Msg("run answered")
	finish("success", func() { sink.ShowResult(res.Answer) })
}

func (p *Pipeline) buildMessages(mode Mode, shot *capture.Screenshot) ([]ai.Message, error) {
	if mode != ModeText {
		return ai.BuildVision(shot, p.opts.VisionInstruction), nil
	}
	if p.deps.Extractor == nil {
		return nil, errs.New(errs.Extraction, "extract", errors.New("no text extractor configured"))
	}
	text, err := p.deps.Extractor.ExtractFromBytes(p.ctx, shot.PNG)
	if err != nil {
		if !errs.Is(err, errs.Extraction) {
			err = errs.New(errs.Extraction, "extract", err)
		}
		return nil, err
	}
	return ai.BuildText(text, p.opts.TextInstruction), nil
}

func logEvent(l zerolog.Logger, err error) *zerolog.Event {
	return l.Warn().Err(err).Str("kind", errs.KindOf(err).String())
}
