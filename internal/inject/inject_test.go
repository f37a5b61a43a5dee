package inject

import (
	"errors"
	"testing"
)

type fakeClipboard struct {
	content string
	writes  []string
	readErr error
}

func (c *fakeClipboard) ReadAll() (string, error) { return c.content, c.readErr }
func (c *fakeClipboard) WriteAll(text string) error {
	c.writes = append(c.writes, text)
	c.content = text
	return nil
}

func newTestInjector(mode string, trailing bool, clip *fakeClipboard, paste func() error) *Injector {
	i := New(mode, trailing, nil)
	i.clip = clip
	i.paste = paste
	i.writeSettle = 0
	i.restoreSettle = 0
	return i
}

func TestTypePastesAndRestores(t *testing.T) {
	clip := &fakeClipboard{content: "previous"}
	var pastedWith string
	i := newTestInjector("paste", true, clip, func() error {
		pastedWith = clip.content
		return nil
	})

	if err := i.Type("hello world"); err != nil {
		t.Fatalf("Type: %v", err)
	}
	if pastedWith != "hello world " {
		t.Fatalf("clipboard at paste = %q", pastedWith)
	}
	if clip.content != "previous" {
		t.Fatalf("clipboard not restored: %q", clip.content)
	}
}

func TestTypeWithoutTrailingSpace(t *testing.T) {
	clip := &fakeClipboard{}
	i := newTestInjector("paste", false, clip, func() error { return nil })
	if err := i.Type("x"); err != nil {
		t.Fatal(err)
	}
	if clip.writes[0] != "x" {
		t.Fatalf("wrote %q", clip.writes[0])
	}
}

func TestTypeDisabledOrEmpty(t *testing.T) {
	clip := &fakeClipboard{}
	called := false
	paste := func() error { called = true; return nil }

	if err := newTestInjector("none", true, clip, paste).Type("hi"); err != nil {
		t.Fatal(err)
	}
	if err := newTestInjector("paste", true, clip, paste).Type(""); err != nil {
		t.Fatal(err)
	}
	if called || len(clip.writes) != 0 {
		t.Fatalf("clipboard touched: called=%v writes=%v", called, clip.writes)
	}
}

func TestTypePasteFailureStillRestores(t *testing.T) {
	clip := &fakeClipboard{content: "keep"}
	boom := errors.New("no uinput")
	i := newTestInjector("paste", false, clip, func() error { return boom })
	if err := i.Type("text"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if clip.content != "keep" {
		t.Fatalf("clipboard = %q", clip.content)
	}
}

func TestTypeUnreadableClipboardSkipsRestore(t *testing.T) {
	clip := &fakeClipboard{readErr: errors.New("empty")}
	i := newTestInjector("paste", false, clip, func() error { return nil })
	if err := i.Type("text"); err != nil {
		t.Fatal(err)
	}
	if len(clip.writes) != 1 {
		t.Fatalf("writes = %v", clip.writes)
	}
}
