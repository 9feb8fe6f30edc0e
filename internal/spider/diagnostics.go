package spider

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// DiagnosticsWriter stores page snapshots when extraction yields nothing.
// Writing is best-effort: failures are logged and never reach the run.
type DiagnosticsWriter struct {
	Dir string
	Now func() time.Time
}

// Dump writes the page markup and, when present, a screenshot. It returns
// the path of the markup file, or an empty string if nothing was written.
func (w *DiagnosticsWriter) Dump(rc RunContext, label, html string, screenshot []byte) string {
	if w == nil || w.Dir == "" || (html == "" && len(screenshot) == 0) {
		return ""
	}
	log := rc.logger()

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		log.Warn("diagnostics dir unavailable", zap.String("dir", w.Dir), zap.Error(err))
		return ""
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	base := fmt.Sprintf("%s_%s_%s",
		sanitizeFileName(rc.BatchID),
		sanitizeFileName(label),
		now().UTC().Format("20060102T150405.000"),
	)

	var written string
	if html != "" {
		path := filepath.Join(w.Dir, base+".html")
		if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
			log.Warn("diagnostics html write failed", zap.String("path", path), zap.Error(err))
		} else {
			written = path
		}
	}
	if len(screenshot) > 0 {
		path := filepath.Join(w.Dir, base+".png")
		if err := os.WriteFile(path, screenshot, 0o644); err != nil {
			log.Warn("diagnostics screenshot write failed", zap.String("path", path), zap.Error(err))
		}
	}
	if written != "" {
		log.Info("diagnostic snapshot saved", zap.String("path", written))
	}
	return written
}

func sanitizeFileName(s string) string {
	s = unsafeFileChars.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}
