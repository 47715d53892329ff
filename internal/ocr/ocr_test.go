package ocr

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/local/screenassist/internal/errs"
)

type fakeEngine struct {
	langs   []string
	langErr error
	text    string
	last    []byte
	closed  atomic.Bool
}

func (f *fakeEngine) SetLanguage(langs ...string) error {
	f.langs = langs
	return f.langErr
}

func (f *fakeEngine) SetImageFromBytes(data []byte) error {
	f.last = data
	return nil
}

func (f *fakeEngine) Text() (string, error) { return f.text, nil }

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func withFake(t *Tesseract, f *fakeEngine, created *atomic.Int32) *Tesseract {
	t.newEngine = func() engine {
		created.Add(1)
		return f
	}
	return t
}

func TestDefaultLanguages(t *testing.T) {
	tess := NewTesseract(nil)
	got := tess.Languages()
	if len(got) != 2 || got[0] != "eng" || got[1] != "vie" {
		t.Fatalf("unexpected default languages %v", got)
	}
}

func TestLazySingleInitUnderConcurrency(t *testing.T) {
	var created atomic.Int32
	f := &fakeEngine{text: "  1 + 1 = ?\n"}
	tess := withFake(NewTesseract([]string{"eng"}), f, &created)

	if created.Load() != 0 {
		t.Fatalf("engine must not be created before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := tess.ExtractFromBytes(context.Background(), []byte{0x89, 'P', 'N', 'G'})
			if err != nil || text != "1 + 1 = ?" {
				t.Errorf("unexpected result %q %v", text, err)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 {
		t.Fatalf("expected exactly one engine, got %d", created.Load())
	}
	if len(f.langs) != 1 || f.langs[0] != "eng" {
		t.Fatalf("languages not applied: %v", f.langs)
	}
}

func TestInitFailureIsMemoized(t *testing.T) {
	var created atomic.Int32
	f := &fakeEngine{langErr: errors.New("Failed loading language 'vie'")}
	tess := withFake(NewTesseract(nil), f, &created)

	for i := 0; i < 3; i++ {
		_, err := tess.ExtractFromBytes(context.Background(), []byte("x"))
		if !errs.Is(err, errs.Extraction) {
			t.Fatalf("expected extraction error, got %v", err)
		}
	}
	if created.Load() != 1 {
		t.Fatalf("init should run once, ran %d times", created.Load())
	}
	if !f.closed.Load() {
		t.Fatalf("engine should be closed after failed init")
	}
}

func TestExtractEncodesImage(t *testing.T) {
	var created atomic.Int32
	f := &fakeEngine{text: "hello"}
	tess := withFake(NewTesseract(nil), f, &created)

	text, err := tess.Extract(context.Background(), image.NewRGBA(image.Rect(0, 0, 3, 3)))
	if err != nil || text != "hello" {
		t.Fatalf("unexpected result %q %v", text, err)
	}
	if len(f.last) < 8 || string(f.last[1:4]) != "PNG" {
		t.Fatalf("engine did not receive png bytes")
	}
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	tess := NewTesseract(nil)
	if _, err := tess.Extract(context.Background(), nil); !errs.Is(err, errs.Extraction) {
		t.Fatalf("expected extraction error for nil image, got %v", err)
	}
	if _, err := tess.ExtractFromBytes(context.Background(), nil); !errs.Is(err, errs.Extraction) {
		t.Fatalf("expected extraction error for empty payload, got %v", err)
	}
}

func TestCloseReleasesEngine(t *testing.T) {
	var created atomic.Int32
	f := &fakeEngine{text: "x"}
	tess := withFake(NewTesseract(nil), f, &created)

	if _, err := tess.ExtractFromBytes(context.Background(), []byte("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tess.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !f.closed.Load() {
		t.Fatalf("engine not closed")
	}
	if _, err := tess.ExtractFromBytes(context.Background(), []byte("x")); !errs.Is(err, errs.Extraction) {
		t.Fatalf("expected extraction error after close, got %v", err)
	}
}

func TestCloseBeforeFirstUseNeverCreatesEngine(t *testing.T) {
	var created atomic.Int32
	f := &fakeEngine{text: "x"}
	tess := withFake(NewTesseract(nil), f, &created)

	if err := tess.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := tess.ExtractFromBytes(context.Background(), []byte("x"))
	if !errs.Is(err, errs.Extraction) || !errors.Is(err, errClosed) {
		t.Fatalf("expected closed extraction error, got %v", err)
	}
	if created.Load() != 0 {
		t.Fatalf("engine created after close: %d", created.Load())
	}
}
