package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/session"
)

func TestPlayFullSession(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "state.json")

	// answer everything correctly; "n" on the last question submits,
	// the final "n" declines another round
	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state}, "a\nn\nb\nn\na c\nn\nn\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Basics: 3 question(s)")
	assert.Contains(t, out, "[x] A) a")
	assert.Contains(t, out, "partial:           20.00 / 20")
	assert.Contains(t, out, "Start again?")

	st, err := readState(state)
	require.NoError(t, err)
	require.NotNil(t, st.Result)
	assert.Nil(t, st.Progress)
	assert.True(t, st.Result.Finished)
	assert.Equal(t, 20.0, st.Result.Tuple.AllOrNothing)
	assert.Equal(t, exam.NewSelection(exam.LabelA, exam.LabelC), st.Result.SelectedAnswers[2])
}

func TestPlaySubmitNeedsConfirmation(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "state.json")

	// the first submit is declined, the second confirmed
	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state}, "a\ns\nn\ns\ny\nn\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Submit with 1 of 3 answered? [y/N]")
	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, out, "all-or-nothing:     6.67 / 20")
}

func TestPlayQuitAndResume(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "state.json")

	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state}, "a\nn\nq\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Progress saved.")

	st, err := readState(state)
	require.NoError(t, err)
	require.NotNil(t, st.Progress)
	assert.Equal(t, 1, st.Progress.CurrentQuestion)
	assert.Equal(t, exam.NewSelection(exam.LabelA), st.Progress.SelectedAnswers[0])

	code, out, errOut = run([]string{"play", "-f", quiz, "-state", state}, "b\nn\na c\nn\nn\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Resuming at question 2.")
	assert.Contains(t, out, "all-or-nothing:    20.00 / 20")
}

func TestPlayPracticeReveal(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "state.json")

	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state, "-practice"}, "b\nr\na\nq\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "Incorrect.")
	assert.Contains(t, out, "Answer: A")
	// the question is locked after reveal
	assert.Contains(t, out, `Cannot select "a" here.`)

	st, err := readState(state)
	require.NoError(t, err)
	require.NotNil(t, st.Progress)
	assert.Equal(t, []int{0}, st.Progress.Revealed)
}

func TestPlayRestartAfterFinish(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "state.json")

	// finish blank, start again, then quit on the first question
	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state}, "s\ny\ny\nq\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "all-or-nothing:     0.00 / 20")
	assert.Contains(t, out, "Progress saved.")

	st, err := readState(state)
	require.NoError(t, err)
	require.NotNil(t, st.Progress)
	assert.Nil(t, st.Result)
	assert.Equal(t, 0, st.Progress.CurrentQuestion)
	assert.Empty(t, st.Progress.SelectedAnswers)
}

func TestPlayNeedsFile(t *testing.T) {
	code, _, errOut := run([]string{"play"}, "")
	require.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut, "missing -f")
}

type flakyWriter struct {
	mu          sync.Mutex
	failResults int
	resultCalls int
	results     []exam.Result
}

func (w *flakyWriter) SaveProgress(context.Context, exam.Progress) error { return nil }

func (w *flakyWriter) SaveResult(_ context.Context, r exam.Result) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resultCalls++
	if w.failResults > 0 {
		w.failResults--
		return errors.New("disk full")
	}
	w.results = append(w.results, r)
	return nil
}

func TestPlayRetriesResultWrite(t *testing.T) {
	qf, err := LoadQuiz(writeFile(t, "basics.yaml", sampleQuiz))
	require.NoError(t, err)
	eng, err := session.New(qf.Questions)
	require.NoError(t, err)

	w := &flakyWriter{failResults: 2}
	stop := make(chan struct{})
	defer close(stop)
	var out bytes.Buffer
	p := &player{
		eng:   eng,
		title: qf.Title,
		out:   &out,
		// submit, retry twice (the second time with an empty answer), decline a new round
		lines: readLines(strings.NewReader("a\ns\ny\ny\n\nn\n"), stop),
		runner: &session.Runner{
			Engine: eng,
			Writer: w,
			Retry:  session.RetryPolicy{Attempts: 1},
		},
	}

	require.Equal(t, ExitOK, p.loop(context.Background()), out.String())
	assert.Equal(t, 3, w.resultCalls)
	require.Len(t, w.results, 1)
	assert.Equal(t, 6.67, w.results[0].AllOrNothing)
	assert.Equal(t, 2, strings.Count(out.String(), "Retry? [Y/n]"))
	assert.Contains(t, out.String(), "Start again?")
}

func TestPlayUnsavedResultFails(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "missing", "state.json")

	// the last "n" declines the retry
	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state}, "a\nn\nb\nn\na c\nn\nn\n")
	require.Equal(t, ExitError, code)
	assert.Contains(t, errOut, "answers are kept in memory")
	assert.Contains(t, out, "partial:           20.00 / 20")
	assert.Contains(t, out, "Result not saved.")
	assert.NotContains(t, out, "Start again?")
	_, err := os.Stat(state)
	assert.True(t, os.IsNotExist(err))
}

func TestPlayUnsavedProgressFails(t *testing.T) {
	quiz := writeFile(t, "basics.yaml", sampleQuiz)
	state := filepath.Join(t.TempDir(), "missing", "state.json")

	code, out, _ := run([]string{"play", "-f", quiz, "-state", state}, "a\nq\n")
	require.Equal(t, ExitError, code)
	assert.Contains(t, out, "Progress not saved.")
}

func TestPlayExpiredProgressFinishes(t *testing.T) {
	quiz := writeFile(t, "timed.yaml", strings.Replace(sampleQuiz, "kind: quiz", "kind: exam\nduration_sec: 600", 1))
	state := writeFile(t, "state.json", `{"progress": {"currentQuestion": 1, "selectedAnswers": {"0": ["A"]}, "timeLeft": 0}}`)

	code, out, errOut := run([]string{"play", "-f", quiz, "-state", state}, "n\n")
	require.Equal(t, ExitOK, code, errOut)
	assert.Contains(t, out, "all-or-nothing:     6.67 / 20")

	st, err := readState(state)
	require.NoError(t, err)
	require.NotNil(t, st.Result)
	assert.Nil(t, st.Progress)
}

func TestPlayAutosaveDefaultFromEnv(t *testing.T) {
	t.Setenv("AUTOSAVE_INTERVAL", "5s")
	code, _, errOut := run([]string{"play", "--help"}, "")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, errOut, "(default 5s)")
}

func TestReadLinesStops(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	ch := readLines(strings.NewReader("a\nb\n"), stop)
	_, ok := <-ch
	assert.False(t, ok, "no line is delivered once stopped")
}
