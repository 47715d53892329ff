// Package ai talks to an OpenAI-compatible chat-completions endpoint and
// builds the prompts sent to it.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/screenassist/internal/capture"
	"github.com/local/screenassist/internal/errs"
	mpkg "github.com/local/screenassist/internal/metrics"
)

const (
	DefaultBaseURL = "https://models.github.ai/inference"
	DefaultModel   = "openai/gpt-4o"
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 4096
)

// Options configures a Client. Token is required.
type Options struct {
	Token       string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Client issues one chat-completions round-trip per call. It holds only
// configuration and is safe for concurrent use.
type Client struct {
	http        *http.Client
	token       string
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewClient validates opts eagerly so a missing credential fails at startup.
func NewClient(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errs.New(errs.Configuration, "new client",
			errors.New("GITHUB_TOKEN is not set; add it to your .env file or environment"))
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		return nil, errs.Newf(errs.Configuration, "new client", "max tokens must be positive, got %d", opts.MaxTokens)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		http:        hc,
		token:       token,
		endpoint:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string { return c.model }

// AnswerFromScreenshot sends shot in vision mode.
func (c *Client) AnswerFromScreenshot(ctx context.Context, shot *capture.Screenshot) Result {
	return c.Complete(ctx, BuildVision(shot, ""))
}

// AnswerFromText sends OCR output in text mode.
func (c *Client) AnswerFromText(ctx context.Context, text string) Result {
	return c.Complete(ctx, BuildText(text, ""))
}

// Complete performs a single POST and classifies every failure. It never
// retries.
func (c *Client) Complete(ctx context.Context, messages []Message) Result {
	start := time.Now()
	answer, err := c.do(ctx, messages)
	dur := time.Since(start)

	result := "success"
	if err != nil {
		result = errs.KindOf(err).String()
		log.Warn().Err(err).Str("model", c.model).Dur("took", dur).Msg("chat completion failed")
	} else {
		log.Info().Str("model", c.model).Int("chars", len(answer)).Dur("took", dur).Msg("chat completion done")
	}
	mpkg.ObserveProvider(c.model, result, dur)

	return Result{Answer: answer, Err: err}
}

func (c *Client) do(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", errs.New(errs.Protocol, "encode request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errs.New(errs.Transport, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errs.New(errs.Transport, "post", scrubToken(err, c.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &errs.Error{
			Kind:   errs.Remote,
			Op:     "post",
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
			Err:    fmt.Errorf("%s", http.StatusText(resp.StatusCode)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.New(errs.Transport, "read body", err)
	}
	return parseAnswer(raw)
}

// parseAnswer extracts choices[0].message.content, treating any missing
// link in that path as a protocol error.
func parseAnswer(raw []byte) (string, error) {
	protoErr := func(cause error) error {
		return &errs.Error{Kind: errs.Protocol, Op: "decode", Body: string(raw), Err: cause}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", protoErr(err)
	}
	if parsed.Choices == nil {
		return "", protoErr(errors.New("missing choices"))
	}
	if len(*parsed.Choices) == 0 {
		return "", protoErr(errors.New("no choices"))
	}
	first := (*parsed.Choices)[0]
	if first.Message == nil || first.Message.Content == nil {
		return "", protoErr(errors.New("missing message content"))
	}
	return *first.Message.Content, nil
}

// scrubToken keeps the bearer token out of error strings.
func scrubToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "[redacted]"))
}
