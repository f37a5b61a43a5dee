// Package cache names temporary audio files and decides whether they are kept
// after an upload.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicekb/internal/logging"
)

// TempPrefix marks files this program may delete at startup.
const TempPrefix = "RecordTemp_"

// Store places temp files in Dir and, when Keep is set, renames them to
// audio-<timestamp>.* after use instead of deleting them.
type Store struct {
	Dir  string
	Keep bool
	log  *zap.SugaredLogger
	now  func() time.Time
}

// New returns a Store rooted at dir (the working directory when empty).
func New(dir string, keep bool, log *zap.SugaredLogger) *Store {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Store{Dir: dir, Keep: keep, log: logging.OrNop(log), now: time.Now}
}

// TempPath returns a fresh RecordTemp_<id>.<ext> path.
func (s *Store) TempPath(ext string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	return filepath.Join(s.Dir, fmt.Sprintf("%s%s.%s", TempPrefix, id, ext))
}

// CleanupOldTempFiles removes leftovers from a previous run.
func (s *Store) CleanupOldTempFiles() {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		s.log.Warnw("read temp dir failed", "dir", s.Dir, "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		path := filepath.Join(s.Dir, e.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warnw("remove stale temp file failed", "path", path, "error", err)
		} else {
			s.log.Debugw("removed stale temp file", "path", path)
		}
	}
}

// Finish disposes of the files produced for one upload. With Keep set they
// are renamed next to each other and the raw response is saved as JSON when
// the upload succeeded; otherwise the files are removed. Empty paths are skipped.
func (s *Store) Finish(wavPath, outPath string, uploadOK bool, body []byte) {
	if !s.Keep {
		for _, p := range []string{wavPath, outPath} {
			if p != "" {
				_ = os.Remove(p)
			}
		}
		return
	}

	base := "audio-" + s.now().Format("2006-01-02-15.04.05.000")
	for _, p := range []string{wavPath, outPath} {
		if p == "" {
			continue
		}
		dst := filepath.Join(s.Dir, base+filepath.Ext(p))
		if err := os.Rename(p, dst); err != nil {
			s.log.Warnw("cache rename failed", "from", p, "to", dst, "error", err)
			_ = os.Remove(p)
		}
	}
	if uploadOK && len(body) > 0 {
		jsonPath := filepath.Join(s.Dir, base+".json")
		if err := os.WriteFile(jsonPath, body, 0644); err != nil {
			s.log.Warnw("cache write response failed", "path", jsonPath, "error", err)
		}
	}
}
