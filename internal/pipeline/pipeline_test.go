package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/local/screenassist/internal/ai"
	"github.com/local/screenassist/internal/capture"
	"github.com/local/screenassist/internal/errs"
	"github.com/local/screenassist/internal/present"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCapture struct {
	mu      sync.Mutex
	calls   int
	regions []*capture.Region
	err     error
	closed  atomic.Bool
}

func (f *fakeCapture) Capture(ctx context.Context, region *capture.Region) (*capture.Screenshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.regions = append(f.regions, region)
	if f.err != nil {
		return nil, f.err
	}
	// PNG signature is enough for the prompt builder.
	return &capture.Screenshot{
		Image: image.NewRGBA(image.Rect(0, 0, 2, 2)),
		PNG:   []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'},
	}, nil
}

func (f *fakeCapture) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeCapture) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAI struct {
	result  ai.Result
	panicV  any
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	// ignoreCtx keeps Complete blocked on release even after cancellation.
	ignoreCtx bool

	mu    sync.Mutex
	calls int
	last  []ai.Message
}

func (f *fakeAI) Complete(ctx context.Context, messages []ai.Message) ai.Result {
	f.mu.Lock()
	f.calls++
	f.last = messages
	f.mu.Unlock()
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.release != nil {
		if f.ignoreCtx {
			<-f.release
		} else {
			select {
			case <-f.release:
			case <-ctx.Done():
				return ai.Result{Err: errs.New(errs.Transport, "complete", ctx.Err())}
			}
		}
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.result
}

func (f *fakeAI) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAI) Last() []ai.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeExtractor struct {
	text   string
	err    error
	calls  atomic.Int32
	closed atomic.Bool
}

func (f *fakeExtractor) Extract(ctx context.Context, img image.Image) (string, error) {
	return f.ExtractFromBytes(ctx, nil)
}

func (f *fakeExtractor) ExtractFromBytes(ctx context.Context, encoded []byte) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

func (f *fakeExtractor) Close() error {
	f.closed.Store(true)
	return nil
}

var _ io.Closer = (*fakeExtractor)(nil)

func newTestPipeline(c *fakeCapture, a *fakeAI, x *fakeExtractor, sink Sink, opts Options) *Pipeline {
	deps := Dependencies{Capture: c, AI: a, Sink: sink}
	if x != nil {
		deps.Extractor = x
	}
	return New(deps, opts)
}

func answered(text string) ai.Result { return ai.Result{Answer: text} }

func TestEndToEndVisionSuccess(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("The result is 7")}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	if !p.Trigger(Trigger{}) {
		t.Fatal("trigger should be accepted while idle")
	}
	p.Wait()

	if sink.Count(present.EventResult) != 1 || sink.Count(present.EventError) != 0 {
		t.Fatalf("unexpected events %v", sink.Events())
	}
	if last, _ := sink.Last(); last.Text != "The result is 7" {
		t.Fatalf("unexpected answer %q", last.Text)
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
	if c.regions[0] != nil {
		t.Fatalf("expected primary display capture, got %v", c.regions[0])
	}
	msgs := a.Last()
	if len(msgs) != 2 || len(msgs[1].Parts) != 2 || msgs[1].Parts[0].Type != "image_url" {
		t.Fatalf("expected a vision request, got %+v", msgs)
	}
}

func TestSinkHiddenDuringCapture(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("x")}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{})
	p.Wait()

	want := []present.EventKind{present.EventHide, present.EventShow, present.EventLoading, present.EventResult}
	evs := sink.Events()
	if len(evs) != len(want) {
		t.Fatalf("expected %v, got %v", want, evs)
	}
	for i := range want {
		if evs[i].Kind != want[i] {
			t.Fatalf("event %d: got %s want %s", i, evs[i].Kind, want[i])
		}
	}
}

func TestHiddenSinkIsNotShownBeforeCall(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("x")}
	sink := present.NewRecorder(false)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{})
	p.Wait()

	if sink.Count(present.EventHide) != 0 || sink.Count(present.EventShow) != 0 {
		t.Fatalf("hidden sink should not be toggled: %v", sink.Events())
	}
}

func TestCaptureFailure(t *testing.T) {
	c := &fakeCapture{err: errors.New("display :0 not reachable")}
	a := &fakeAI{result: answered("unused")}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{})
	p.Wait()

	if sink.Count(present.EventError) != 1 || sink.Count(present.EventResult) != 0 {
		t.Fatalf("unexpected events %v", sink.Events())
	}
	last, _ := sink.Last()
	if !strings.Contains(last.Text, "display :0 not reachable") {
		t.Fatalf("error does not describe the capture failure: %q", last.Text)
	}
	if sink.Count(present.EventLoading) != 0 {
		t.Fatalf("no loading indicator expected without a call")
	}
	if a.Calls() != 0 {
		t.Fatalf("no network call expected, got %d", a.Calls())
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
}

func TestSingleFlightDropsConcurrentTriggers(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{
		result:  answered("done"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	if !p.Trigger(Trigger{}) {
		t.Fatal("first trigger should be accepted")
	}
	select {
	case <-a.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("call never started")
	}
	if p.State() != AwaitingAnswer {
		t.Fatalf("expected awaiting_answer, got %s", p.State())
	}

	for i := 0; i < 5; i++ {
		if p.Trigger(Trigger{Mode: ModeText}) {
			t.Fatal("trigger while busy must be dropped")
		}
	}
	if p.State() != AwaitingAnswer {
		t.Fatalf("dropped trigger changed state to %s", p.State())
	}

	close(a.release)
	p.Wait()

	if c.Calls() != 1 || a.Calls() != 1 {
		t.Fatalf("expected one capture and one call, got %d and %d", c.Calls(), a.Calls())
	}
	if sink.Count(present.EventResult) != 1 {
		t.Fatalf("expected exactly one result, got %v", sink.Events())
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
	if !p.Trigger(Trigger{}) {
		t.Fatal("trigger after completion should be accepted")
	}
	p.Wait()
}

func TestTextModeUsesExtractor(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("4")}
	x := &fakeExtractor{text: "2 + 2 = ?"}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, x, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{Mode: ModeText})
	p.Wait()

	if x.calls.Load() != 1 {
		t.Fatalf("expected one extraction, got %d", x.calls.Load())
	}
	msgs := a.Last()
	want := "Screen content:\n\n2 + 2 = ?\n\n" + ai.DefaultTextInstruction
	if len(msgs) != 2 || msgs[1].Text != want {
		t.Fatalf("unexpected text request %+v", msgs)
	}
	if last, _ := sink.Last(); last.Kind != present.EventResult || last.Text != "4" {
		t.Fatalf("unexpected terminal event %+v", last)
	}
}

func TestAutoModeFollowsTextOnly(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("x")}
	x := &fakeExtractor{text: "q"}
	p := newTestPipeline(c, a, x, present.NewRecorder(true), Options{TextOnly: true})
	defer p.Close()

	p.Trigger(Trigger{Mode: ModeAuto})
	p.Wait()
	if x.calls.Load() != 1 {
		t.Fatal("auto mode with TextOnly should extract text")
	}

	p.Trigger(Trigger{Mode: ModeVision})
	p.Wait()
	if x.calls.Load() != 1 || a.Last()[1].Parts == nil {
		t.Fatal("explicit vision mode should send the image")
	}
}

func TestTextModeWithoutExtractor(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("x")}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{Mode: ModeText})
	p.Wait()

	last, _ := sink.Last()
	if last.Kind != present.EventError || !strings.Contains(last.Text, "Text extraction failed") {
		t.Fatalf("expected extraction error, got %+v", last)
	}
	if a.Calls() != 0 {
		t.Fatal("no call expected when extraction fails")
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
}

func TestRemoteFailurePublishesOneError(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: ai.Result{Err: &errs.Error{Kind: errs.Remote, Op: "post", Status: 500, Body: "oops", Err: errors.New("Internal Server Error")}}}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{})
	p.Wait()

	if sink.Count(present.EventError) != 1 || sink.Count(present.EventResult) != 0 {
		t.Fatalf("unexpected events %v", sink.Events())
	}
	last, _ := sink.Last()
	if !strings.Contains(last.Text, "HTTP 500") || !strings.Contains(last.Text, "oops") {
		t.Fatalf("error lacks diagnostics: %q", last.Text)
	}
	if a.Calls() != 1 {
		t.Fatalf("expected a single attempt, got %d", a.Calls())
	}
}

func TestRegionUpdates(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("x")}
	def := &capture.Region{X: 1, Y: 2, Width: 30, Height: 40}
	p := newTestPipeline(c, a, nil, present.NewRecorder(false), Options{DefaultRegion: def})
	defer p.Close()

	p.Trigger(Trigger{})
	p.Wait()

	sel := &capture.Region{X: 100, Y: 100, Width: 50, Height: 60}
	p.SetRegion(sel)
	sel.Width = 1 // caller mutations must not leak in
	p.Trigger(Trigger{})
	p.Wait()

	override := &capture.Region{X: 7, Y: 7, Width: 7, Height: 7}
	p.Trigger(Trigger{Region: override})
	p.Wait()

	p.SetRegion(nil)
	p.Trigger(Trigger{})
	p.Wait()

	got := c.regions
	if len(got) != 4 {
		t.Fatalf("expected 4 captures, got %d", len(got))
	}
	if *got[0] != *def {
		t.Fatalf("first capture should use default region, got %v", got[0])
	}
	if *got[1] != (capture.Region{X: 100, Y: 100, Width: 50, Height: 60}) {
		t.Fatalf("second capture should use selected region, got %v", got[1])
	}
	if *got[2] != *override {
		t.Fatalf("third capture should use trigger override, got %v", got[2])
	}
	if got[3] != nil {
		t.Fatalf("fourth capture should use primary display, got %v", got[3])
	}
}

func TestPanicBecomesErrorEvent(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{panicV: "nil map write"}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	p.Trigger(Trigger{})
	p.Wait()

	last, ok := sink.Last()
	if !ok || last.Kind != present.EventError {
		t.Fatalf("expected error event, got %v", sink.Events())
	}
	if !strings.Contains(last.Text, "nil map write") || !strings.Contains(last.Text, "Details:") {
		t.Fatalf("panic message lacks details: %q", last.Text)
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
}

type panickySink struct {
	*present.Recorder
}

func (s panickySink) ShowResult(text string) { panic("render failed") }

func TestSinkPanicStillReturnsToIdle(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("42")}
	sink := panickySink{present.NewRecorder(true)}
	p := newTestPipeline(c, a, nil, sink, Options{})
	defer p.Close()

	if !p.Trigger(Trigger{}) {
		t.Fatal("first trigger should be accepted")
	}
	p.Wait()
	if p.State() != Idle {
		t.Fatalf("expected idle after sink panic, got %s", p.State())
	}
	if !p.Trigger(Trigger{}) {
		t.Fatal("pipeline must accept triggers after a sink panic")
	}
	p.Wait()
	if a.Calls() != 2 {
		t.Fatalf("expected two calls, got %d", a.Calls())
	}
	if sink.Count(present.EventError) != 0 {
		t.Fatalf("sink panic must not add a second terminal event, got %v", sink.Events())
	}
}

func TestCloseCancelsInFlightRun(t *testing.T) {
	c := &fakeCapture{}
	x := &fakeExtractor{}
	a := &fakeAI{
		result:  answered("too late"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, x, sink, Options{})

	p.Trigger(Trigger{})
	select {
	case <-a.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("call never started")
	}

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("close blocked on the in-flight run")
	}
	if !c.closed.Load() || !x.closed.Load() {
		t.Fatal("close should release capture device and extractor")
	}

	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled run never published")
	}
	p.Wait()

	if sink.Count(present.EventError) != 1 || sink.Count(present.EventResult) != 0 {
		t.Fatalf("expected exactly one error event, got %v", sink.Events())
	}
	last, _ := sink.Last()
	if !strings.HasPrefix(last.Text, "Could not reach the AI endpoint") {
		t.Fatalf("unexpected error text %q", last.Text)
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
}

func TestCloseDoesNotWaitForWorker(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{
		result:    answered("done"),
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
		ignoreCtx: true,
	}
	sink := present.NewRecorder(true)
	p := newTestPipeline(c, a, nil, sink, Options{})

	p.Trigger(Trigger{})
	<-a.entered

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close waited for a worker that ignores cancellation")
	}
	select {
	case <-sink.Done():
		t.Fatal("run published before the call returned")
	default:
	}
	if p.State() != AwaitingAnswer {
		t.Fatalf("worker still owns the state, got %s", p.State())
	}

	close(a.release)
	p.Wait()
	if sink.Count(present.EventResult)+sink.Count(present.EventError) != 1 {
		t.Fatalf("expected one terminal event, got %v", sink.Events())
	}
	if p.State() != Idle {
		t.Fatalf("expected idle, got %s", p.State())
	}
}

func TestCloseReleasesResourcesAndDropsTriggers(t *testing.T) {
	c := &fakeCapture{}
	a := &fakeAI{result: answered("x")}
	x := &fakeExtractor{}
	p := newTestPipeline(c, a, x, present.NewRecorder(true), Options{})

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !c.closed.Load() || !x.closed.Load() {
		t.Fatal("close should release capture device and extractor")
	}
	if p.Trigger(Trigger{}) {
		t.Fatal("closed pipeline must drop triggers")
	}
	if c.Calls() != 0 {
		t.Fatal("no capture expected after close")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "vision": ModeVision, "text": ModeText, "ocr": ModeText} {
		got, ok := ParseMode(in)
		if !ok || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseMode("telepathy"); ok {
		t.Error("unknown mode should not parse")
	}
}
