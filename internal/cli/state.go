package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

// stateFile is what play keeps on disk between runs.
type stateFile struct {
	Progress *exam.Progress `json:"progress,omitempty"`
	Result   *exam.Result   `json:"result,omitempty"`
}

// fileWriter is a session.Writer backed by one JSON file. Each write
// replaces the file atomically.
type fileWriter struct{ path string }

func (w fileWriter) SaveProgress(ctx context.Context, p exam.Progress) error {
	return w.write(ctx, stateFile{Progress: &p})
}

func (w fileWriter) SaveResult(ctx context.Context, r exam.Result) error {
	return w.write(ctx, stateFile{Result: &r})
}

func (w fileWriter) write(ctx context.Context, st stateFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".quizstate-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), w.path)
}

// readState returns the saved state, or an empty one if the file is missing.
func readState(path string) (stateFile, error) {
	var st stateFile
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}
