// Package statuscheck reports whether the things a run depends on are
// available: the AI endpoint, a display to capture, OCR languages and host
// headroom.
package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Checker aggregates readiness checks for the control server.
type Checker struct {
	httpClient *http.Client
	baseURL    string
	token      string
	languages  []string
	ocrEnabled bool

	displays  func() int
	available func() ([]string, error)
	host      func(ctx context.Context) (Host, error)
}

// Options configures the Checker. Displays and AvailableLanguages are
// required; a nil AvailableLanguages reports OCR as unavailable.
type Options struct {
	HTTPClient         *http.Client
	BaseURL            string
	Token              string
	OCREnabled         bool
	Languages          []string
	Displays           func() int
	AvailableLanguages func() ([]string, error)
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Host is a load snapshot of the machine and this process.
type Host struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ProcessRSSMB  float64 `json:"process_rss_mb"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	AI      Status `json:"ai"`
	Display Status `json:"display"`
	OCR     Status `json:"ocr"`
	Host    Status `json:"host"`
	Load    *Host  `json:"load,omitempty"`
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Checker{
		httpClient: client,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      strings.TrimSpace(opts.Token),
		languages:  opts.Languages,
		ocrEnabled: opts.OCREnabled,
		displays:   opts.Displays,
		available:  opts.AvailableLanguages,
		host:       hostLoad,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		AI:      c.checkAI(ctx),
		Display: c.checkDisplay(),
		OCR:     c.checkOCR(),
	}
	load, err := c.host(ctx)
	if err != nil {
		s.Host = Status{OK: false, Message: trimError(err)}
	} else {
		s.Host = Status{OK: true, Message: fmt.Sprintf("cpu %.0f%%, memory %.0f%%", load.CPUPercent, load.MemoryPercent)}
		s.Load = &load
	}
	return s
}

// checkAI sends a GET to the base URL. Any answer short of 401/403 or a 5xx means
// the endpoint is reachable with this token.
func (c *Checker) checkAI(ctx context.Context) Status {
	if c.token == "" {
		return Status{OK: false, Message: "API token missing"}
	}
	if c.baseURL == "" {
		return Status{OK: false, Message: "Endpoint not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d: token rejected", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Reachable"}
}

func (c *Checker) checkDisplay() Status {
	if c.displays == nil {
		return Status{OK: false, Message: "Display check unavailable"}
	}
	n := c.displays()
	if n <= 0 {
		return Status{OK: false, Message: "No active display"}
	}
	return Status{OK: true, Message: fmt.Sprintf("%d active", n)}
}

func (c *Checker) checkOCR() Status {
	if !c.ocrEnabled {
		return Status{OK: false, Message: "Disabled"}
	}
	if c.available == nil {
		return Status{OK: false, Message: "Language check unavailable"}
	}
	have, err := c.available()
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	set := make(map[string]bool, len(have))
	for _, l := range have {
		set[l] = true
	}
	var missing []string
	for _, l := range c.languages {
		if !set[l] {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return Status{OK: false, Message: "Missing languages: " + strings.Join(missing, ", ")}
	}
	return Status{OK: true, Message: "Available"}
}

func hostLoad(ctx context.Context) (Host, error) {
	var h Host
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return h, err
	}
	if len(pcts) > 0 {
		h.CPUPercent = pcts[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return h, err
	}
	h.MemoryPercent = vm.UsedPercent
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			h.ProcessRSSMB = float64(mi.RSS) / (1 << 20)
		}
	}
	return h, nil
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
