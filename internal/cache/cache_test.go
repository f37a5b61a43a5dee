package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestTempPathAndCleanup(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, false, nil)

	p := s.TempPath("wav")
	if filepath.Dir(p) != dir || !strings.HasPrefix(filepath.Base(p), TempPrefix) || filepath.Ext(p) != ".wav" {
		t.Fatalf("unexpected temp path %s", p)
	}
	if p == s.TempPath("wav") {
		t.Fatalf("temp paths must be unique")
	}

	touch(t, p)
	keep := filepath.Join(dir, "notes.txt")
	touch(t, keep)
	s.CleanupOldTempFiles()

	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("temp file not removed")
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("unrelated file removed: %v", err)
	}
}

func TestFinishRemovesWithoutKeep(t *testing.T) {
	s := New(t.TempDir(), false, nil)
	wav, out := s.TempPath("wav"), s.TempPath("ogg")
	touch(t, wav)
	touch(t, out)

	s.Finish(wav, out, true, []byte(`{"text":"hi"}`))
	for _, p := range []string{wav, out} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("%s not removed", p)
		}
	}
}

func TestFinishKeepsFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, true, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	wav := s.TempPath("wav")
	touch(t, wav)

	s.Finish(wav, "", true, []byte(`{"text":"hi"}`))

	base := filepath.Join(dir, "audio-2024-05-06-07.08.09.000")
	if _, err := os.Stat(base + ".wav"); err != nil {
		t.Fatalf("wav not kept: %v", err)
	}
	body, err := os.ReadFile(base + ".json")
	if err != nil || string(body) != `{"text":"hi"}` {
		t.Fatalf("response not kept: %v %q", err, body)
	}
}
