package styles

import (
	"bytes"
	"testing"
)

func TestPrinter_PlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	if p.IsTerminal() {
		t.Error("IsTerminal() = true for a bytes.Buffer")
	}
	if p.Color() {
		t.Error("Color() = true for a bytes.Buffer")
	}
	if p.Width() != DefaultWidth {
		t.Errorf("Width() = %d, want %d", p.Width(), DefaultWidth)
	}
	if got := p.Render(Failure, "FAILED"); got != "FAILED" {
		t.Errorf("Render() = %q, want plain text", got)
	}
	if p.Writer() != &buf {
		t.Error("Writer() does not return the wrapped writer")
	}
}
