package log

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const osOpenFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// fileHook is a logrus.Hook that appends formatted entries to a file opened
// through an injectable afero.Fs, so --log-output=file=./path.log can be
// exercised hermetically in tests.
type fileHook struct {
	mu        sync.Mutex
	file      afero.File
	formatter logrus.Formatter
	levels    []logrus.Level
}

func (h *fileHook) Levels() []logrus.Level {
	return h.levels
}

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.file.Write(line)
	return err
}

// FileHookFromConfigLine parses a "file=./path" --log-output line (all of
// the text after "file=" is the path; no level suffix is parsed), opens the
// target file (created/appended) through fs, and returns a hook that writes
// every subsequent log entry at debug level or above to it. done is closed once ctx is
// cancelled and the file has been flushed and closed.
func FileHookFromConfigLine(
	ctx context.Context, fs afero.Fs, fallback logrus.FieldLogger, line string, done chan<- struct{},
) (logrus.Hook, error) {
	const prefix = "file="
	if !strings.HasPrefix(line, prefix) {
		return nil, fmt.Errorf("invalid file log-output %q, expected %sPATH", line, prefix)
	}

	path := strings.TrimPrefix(line, prefix)
	if path == "" {
		return nil, fmt.Errorf("invalid file log-output %q: empty path", line)
	}

	f, err := fs.OpenFile(path, osOpenFlags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open log file %q: %w", path, err)
	}

	levels, err := parseLevels("debug")
	if err != nil {
		return nil, err
	}

	hook := &fileHook{file: f, formatter: &logrus.TextFormatter{DisableColors: true}, levels: levels}

	go func() {
		<-ctx.Done()
		hook.mu.Lock()
		closeErr := hook.file.Close()
		hook.mu.Unlock()
		if closeErr != nil {
			fallback.WithError(closeErr).Warn("could not close log file cleanly")
		}
		close(done)
	}()

	return hook, nil
}
