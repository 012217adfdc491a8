// Package qti converts between question sets and IMS QTI content packages.
package qti

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/qti/parser"
)

// Imported is the result of reading a package. Skipped names the items that
// are not multiple choice or do not fit five options.
type Imported struct {
	Title     string
	Questions []exam.Question
	Skipped   []string
}

// Import reads every item of the package in manifest order.
func Import(fsys fs.FS) (Imported, error) {
	mf, hrefs, err := parser.ParseManifest(fsys)
	if err != nil {
		return Imported{}, err
	}
	items := make([]parser.ParsedItem, 0, len(hrefs))
	for _, h := range hrefs {
		it, err := parser.ParseItem(fsys, h)
		if err != nil {
			return Imported{}, fmt.Errorf("item %s: %w", h, err)
		}
		items = append(items, it)
	}
	out := MapToQuestions(items)
	out.Title = titleFromManifest(mf)
	return out, exam.ValidateQuestions(out.Questions)
}

// MapToQuestions assigns labels A..E to choices in document order and
// translates the answer key through that mapping.
func MapToQuestions(items []parser.ParsedItem) Imported {
	var out Imported
	for _, it := range items {
		q, ok := toQuestion(it)
		if !ok {
			out.Skipped = append(out.Skipped, it.ID)
			continue
		}
		out.Questions = append(out.Questions, q)
	}
	return out
}

func toQuestion(it parser.ParsedItem) (exam.Question, bool) {
	if it.Kind == parser.InteractionOther || len(it.Choices) == 0 || len(it.Choices) > len(exam.Labels) {
		return exam.Question{}, false
	}
	q := exam.Question{
		Text:          it.Prompt,
		Options:       make(map[exam.Label]string, len(it.Choices)),
		Source:        it.ID,
		Image:         it.Image,
		Justification: it.Feedback,
	}
	byID := make(map[string]exam.Label, len(it.Choices))
	for i, c := range it.Choices {
		l := exam.Labels[i]
		byID[c.ID] = l
		q.Options[l] = c.Text
	}
	for _, v := range it.AnswerKey {
		l, ok := byID[strings.TrimSpace(v)]
		if !ok {
			return exam.Question{}, false
		}
		q.CorrectAnswer = append(q.CorrectAnswer, l)
	}
	if q.Text == "" {
		q.Text = it.Title
	}
	return q, true
}

func titleFromManifest(m parser.Manifest) string {
	for _, r := range m.Resources {
		if base := filepath.Base(r.Href); base != "" && base != "." {
			return strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
	return "Imported quiz"
}
