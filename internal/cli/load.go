package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

// QuizFile is a question document on disk. A bare list of questions is
// accepted too.
type QuizFile struct {
	Title       string          `json:"title" yaml:"title"`
	Kind        exam.Kind       `json:"kind" yaml:"kind"`
	DurationSec int             `json:"duration_sec" yaml:"duration_sec"`
	Questions   []exam.Question `json:"questions" yaml:"questions"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decodeStrict decodes data into v, rejecting unknown fields.
func decodeStrict(path string, data []byte, v any) error {
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(v)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// LoadQuiz reads and validates a question file.
func LoadQuiz(path string) (QuizFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return QuizFile{}, err
	}
	var qf QuizFile
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) || bytes.HasPrefix(trimmed, []byte("-")) {
		err = decodeStrict(path, data, &qf.Questions)
	} else {
		err = decodeStrict(path, data, &qf)
	}
	if err != nil {
		return QuizFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if qf.Kind == "" {
		qf.Kind = exam.KindQuiz
	}
	if !qf.Kind.Valid() {
		return QuizFile{}, fmt.Errorf("parse %s: unknown kind %q", path, qf.Kind)
	}
	if qf.Title == "" {
		qf.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := exam.ValidateQuestions(qf.Questions); err != nil {
		return QuizFile{}, err
	}
	return qf, nil
}

// LoadAnswers reads an answer sheet mapping question index to a label or a
// list of labels, e.g. {"0": "A", "2": ["B", "D"]}.
func LoadAnswers(path string) (map[int]exam.Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := map[string]exam.AnswerKey{}
	if err := decodeStrict(path, data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[int]exam.Selection, len(raw))
	for k, v := range raw {
		i, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("parse %s: question index %q is not a number", path, k)
		}
		out[i] = exam.NewSelection(v...)
	}
	return out, nil
}
