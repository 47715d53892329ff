// Package logger configures the process-wide zerolog logger.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const service = "screenassist"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console is where human-facing log lines go. Defaults to stderr so
	// stdout stays free for answers.
	Console io.Writer

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var (
	mu      sync.Mutex
	shipper *axiomShipper
	rotator *lumberjack.Logger
)

// Init replaces the global logger: rotated JSON file, console output and,
// when configured, Axiom forwarding of info+ events.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var writers []io.Writer
	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen})
	} else {
		writers = append(writers, console)
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create logs dir: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		writers = append(writers, rotator)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		s, err := newAxiomShipper(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			shipper = s
			writers = append(writers, s)
		}
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Str("service", service).
		Logger()
	return nil
}

// Close flushes Axiom and closes the rotated file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if shipper != nil {
		_ = shipper.Close()
		shipper = nil
	}
	if rotator != nil {
		_ = rotator.Close()
		rotator = nil
	}
}

// axiomShipper batches zerolog JSON lines and ingests them in the background.
// Debug lines are dropped and a full buffer drops events rather than block.
type axiomShipper struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAxiomShipper(token, orgID, dataset string, every time.Duration) (*axiomShipper, error) {
	if dataset == "" {
		dataset = "dev_" + service
	}
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	c, err := axiom.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	if every <= 0 {
		every = 10 * time.Second
	}
	s := &axiomShipper{
		client:  c,
		dataset: dataset,
		events:  make(chan axiom.Event, 512),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop(every)
	return s, nil
}

func (s *axiomShipper) Write(p []byte) (int, error) {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	if lvl, _ := ev["level"].(string); lvl == "debug" || lvl == "trace" {
		return len(p), nil
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	select {
	case s.events <- axiom.Event(ev):
	default:
	}
	return len(p), nil
}

func (s *axiomShipper) loop(every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, 100)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = s.client.IngestEvents(ctx, s.dataset, batch)
		cancel()
		batch = batch[:0]
	}
	for {
		select {
		case <-s.done:
			for {
				select {
				case ev := <-s.events:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-s.events:
			batch = append(batch, ev)
			if len(batch) == cap(batch) {
				flush()
			}
		}
	}
}

func (s *axiomShipper) Close() error {
	close(s.done)
	s.wg.Wait()
	return nil
}
