package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleQuiz = `title: Basics
kind: quiz
questions:
  - text: First letter?
    options: {A: a, B: b}
    correct_answer: A
  - text: Second letter?
    options: {A: a, B: b, C: c}
    correct_answer: B
  - text: Vowels?
    options: {A: a, B: b, C: e}
    correct_answer: [A, C]
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(args []string, in string) (int, string, string) {
	var out, errb bytes.Buffer
	code := Run(args, Streams{In: strings.NewReader(in), Out: &out, Err: &errb})
	return code, out.String(), errb.String()
}

func TestRootHelp(t *testing.T) {
	code, out, errOut := run([]string{"--help"}, "")
	require.Equal(t, ExitOK, code)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "Usage:")
	for _, cmd := range commands {
		assert.Contains(t, out, cmd.Name)
	}
}

func TestNoArgsShowsUsage(t *testing.T) {
	code, out, _ := run(nil, "")
	require.Equal(t, ExitUsage, code)
	assert.Contains(t, out, "Usage:")
}

func TestUnknownCommand(t *testing.T) {
	code, out, errOut := run([]string{"nope"}, "")
	require.Equal(t, ExitUsage, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Unknown command")
}

func TestCommandHelp(t *testing.T) {
	for _, cmd := range commands {
		code, out, _ := run([]string{cmd.Name, "--help"}, "")
		require.Equal(t, ExitOK, code, cmd.Name)
		assert.Contains(t, out, "quizctl "+cmd.Name)
	}
}

func TestValidate(t *testing.T) {
	path := writeFile(t, "basics.yaml", sampleQuiz)
	code, out, errOut := run([]string{"validate", "-f", path}, "")
	require.Equal(t, ExitOK, code, errOut)
	assert.Equal(t, "Basics: 3 question(s), 1 multi-select, kind quiz\n", out)
}

func TestValidateListsEveryProblem(t *testing.T) {
	path := writeFile(t, "bad.json", `[
  {"text": "no options", "options": {}, "correct_answer": "A"},
  {"text": "key not an option", "options": {"A": "a"}, "correct_answer": "B"}
]`)
	code, _, errOut := run([]string{"validate", "-f", path}, "")
	require.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "questions[0]")
	assert.Contains(t, errOut, "questions[1]")
}

func TestValidateRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "typo.yaml", "title: x\nquestion: []\n")
	code, _, errOut := run([]string{"validate", "-f", path}, "")
	require.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "question")
}

func TestValidateMissingFile(t *testing.T) {
	code, _, errOut := run([]string{"validate"}, "")
	require.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "missing -f")
}

func TestScore(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	answers := writeFile(t, "answers.yaml", "0: A\n2: [A, B]\n")

	code, out, errOut := run([]string{"score", "-f", quiz, "-a", answers}, "")
	require.Equal(t, ExitOK, code, errOut)
	// Q1 exact, Q2 blank, Q3 one of two right plus one wrong.
	assert.Contains(t, out, "all-or-nothing:     6.67 / 20")
	assert.Contains(t, out, "partial:           10.00 / 20")
	assert.Contains(t, out, "partial-negative:   8.33 / 20")
	assert.Contains(t, out, "1/2")
}

func TestScoreJSON(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	answers := writeFile(t, "answers.json", `{"0": "A", "1": "B", "2": ["A", "C"]}`)

	code, out, errOut := run([]string{"score", "-f", quiz, "-a", answers, "-json", "-scale", "10"}, "")
	require.Equal(t, ExitOK, code, errOut)
	var got map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 10.0, got["score_all_or_nothing"])
	assert.Equal(t, 10.0, got["score_partial"])
	assert.Equal(t, 10.0, got["score_partial_negative"])
}

func TestScoreBadFloor(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	code, _, _ := run([]string{"score", "-f", quiz, "-a", quiz, "-floor", "sideways"}, "")
	require.Equal(t, ExitUsage, code)
}

func TestScoreBadAnswerIndex(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	answers := writeFile(t, "answers.yaml", "first: A\n")
	code, _, errOut := run([]string{"score", "-f", quiz, "-a", answers}, "")
	require.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "not a number")
}

func TestExportThenImport(t *testing.T) {
	dir := t.TempDir()
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	pkg := filepath.Join(dir, "basics.zip")
	back := filepath.Join(dir, "back.yaml")

	code, out, errOut := run([]string{"export", "-f", quiz, "-o", pkg}, "")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Wrote 3 item(s)")

	code, out, errOut = run([]string{"import", "-qti", pkg, "-o", back, "-kind", "exam"}, "")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Wrote 3 question(s)")

	qf, err := LoadQuiz(back)
	require.NoError(t, err)
	assert.Equal(t, "q001", qf.Title)
	require.Len(t, qf.Questions, 3)
	assert.Equal(t, "Vowels?", qf.Questions[2].Text)
	assert.True(t, qf.Questions[2].IsMulti())

	code, out, _ = run([]string{"validate", "-f", back}, "")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "kind exam")
}

func TestImportRejectsUnknownKind(t *testing.T) {
	code, _, errOut := run([]string{"import", "-qti", "x.zip", "-kind", "essay"}, "")
	require.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "unknown kind")
}
