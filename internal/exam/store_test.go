package exam_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

func sqliteStore(t *testing.T) exam.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return exam.NewSQLStore(conn, string(db.DriverSQLite))
}

func stores() map[string]func(*testing.T) exam.Store {
	return map[string]func(*testing.T) exam.Store{
		"memory": func(*testing.T) exam.Store { return exam.NewInMemoryStore() },
		"sqlite": sqliteStore,
	}
}

func sampleSession(owner string) exam.Session {
	return exam.Session{
		OwnerID:     owner,
		Title:       "Biology 1",
		Kind:        exam.KindExam,
		DurationSec: 600,
		Questions: []exam.Question{
			{Text: "cell", Options: map[exam.Label]string{exam.LabelA: "x", exam.LabelB: "y"}, CorrectAnswer: exam.AnswerKey{exam.LabelA}},
			{Text: "dna", Options: map[exam.Label]string{exam.LabelA: "x", exam.LabelB: "y", exam.LabelC: "z"}, CorrectAnswer: exam.AnswerKey{exam.LabelB, exam.LabelC}},
		},
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)

			s, err := st.CreateSession(ctx, sampleSession("u1"))
			require.NoError(t, err)
			require.NotEmpty(t, s.ID)

			got, err := st.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, "Biology 1", got.Title)
			assert.Equal(t, exam.KindExam, got.Kind)
			assert.Equal(t, 600, got.DurationSec)
			require.Len(t, got.Questions, 2)
			assert.Equal(t, exam.AnswerKey{exam.LabelB, exam.LabelC}, got.Questions[1].CorrectAnswer)
			assert.Nil(t, got.Progress)

			p := exam.Progress{
				CurrentQuestion: 1,
				SelectedAnswers: map[int]exam.Selection{0: {exam.LabelA}},
				TimeLeft:        420,
				SavedAt:         time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			}
			require.NoError(t, st.SaveProgress(ctx, s.ID, p))
			got, err = st.GetSession(ctx, s.ID)
			require.NoError(t, err)
			require.NotNil(t, got.Progress)
			assert.Equal(t, 1, got.Progress.CurrentQuestion)
			assert.Equal(t, 420, got.Progress.TimeLeft)
			assert.Equal(t, exam.Selection{exam.LabelA}, got.Progress.SelectedAnswers[0])

			r := exam.Result{SelectedAnswers: p.SelectedAnswers}
			r.AllOrNothing, r.Partial, r.PartialNegative = 10, 10, 10
			require.NoError(t, st.SaveResult(ctx, s.ID, r))

			got, err = st.GetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.True(t, got.Finished)
			assert.Nil(t, got.Progress)
			require.NotNil(t, got.Result)
			assert.True(t, got.Result.Finished)
			assert.Equal(t, 10.0, got.Result.Partial)

			assert.ErrorIs(t, st.SaveProgress(ctx, s.ID, p), exam.ErrFinished)
			assert.ErrorIs(t, st.SaveResult(ctx, s.ID, r), exam.ErrFinished)

			reset, err := st.ResetSession(ctx, s.ID)
			require.NoError(t, err)
			assert.False(t, reset.Finished)
			assert.Nil(t, reset.Result)
			assert.Len(t, reset.Questions, 2)
			require.NoError(t, st.SaveProgress(ctx, s.ID, p))
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)

			_, err := st.GetSession(ctx, "missing")
			assert.ErrorIs(t, err, exam.ErrNotFound)
			assert.ErrorIs(t, st.SaveProgress(ctx, "missing", exam.Progress{}), exam.ErrNotFound)
			assert.ErrorIs(t, st.SaveResult(ctx, "missing", exam.Result{}), exam.ErrNotFound)
			_, err = st.ResetSession(ctx, "missing")
			assert.ErrorIs(t, err, exam.ErrNotFound)
			assert.ErrorIs(t, st.DeleteSession(ctx, "missing"), exam.ErrNotFound)
			_, err = st.AppendNote(ctx, exam.Note{SessionID: "missing"})
			assert.ErrorIs(t, err, exam.ErrNotFound)
			_, err = st.AppendReport(ctx, exam.Report{SessionID: "missing"})
			assert.ErrorIs(t, err, exam.ErrNotFound)
		})
	}
}

func TestStore_RejectsMalformedQuestions(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			s := sampleSession("u1")
			s.Questions[0].CorrectAnswer = nil
			_, err := open(t).CreateSession(context.Background(), s)
			assert.ErrorIs(t, err, exam.ErrMalformedQuestion)
		})
	}
}

func TestStore_ListAndNotes(t *testing.T) {
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t)

			a, err := st.CreateSession(ctx, sampleSession("u1"))
			require.NoError(t, err)
			quiz := sampleSession("u1")
			quiz.Kind, quiz.DurationSec = exam.KindQuiz, 0
			_, err = st.CreateSession(ctx, quiz)
			require.NoError(t, err)
			_, err = st.CreateSession(ctx, exam.Session{OwnerID: "u2", Title: "empty"})
			require.NoError(t, err)

			mine, err := st.ListSessions(ctx, exam.ListOpts{OwnerID: "u1"})
			require.NoError(t, err)
			assert.Len(t, mine, 2)

			exams, err := st.ListSessions(ctx, exam.ListOpts{OwnerID: "u1", Kind: exam.KindExam})
			require.NoError(t, err)
			require.Len(t, exams, 1)
			assert.Equal(t, a.ID, exams[0].ID)
			assert.Equal(t, 2, exams[0].QuestionCount)

			all, err := st.ListSessions(ctx, exam.ListOpts{Limit: 2})
			require.NoError(t, err)
			assert.Len(t, all, 2)
			rest, err := st.ListSessions(ctx, exam.ListOpts{Limit: 2, Offset: 2})
			require.NoError(t, err)
			assert.Len(t, rest, 1)

			_, err = st.AppendNote(ctx, exam.Note{SessionID: a.ID, UserID: "u1", Question: 1, Text: "revisit"})
			require.NoError(t, err)
			rep, err := st.AppendReport(ctx, exam.Report{SessionID: a.ID, UserID: "u1", Question: 0, Reason: "two answers look right"})
			require.NoError(t, err)
			assert.NotEmpty(t, rep.ID)

			notes, err := st.ListNotes(ctx, a.ID)
			require.NoError(t, err)
			require.Len(t, notes, 1)
			assert.Equal(t, "revisit", notes[0].Text)
			assert.Equal(t, 1, notes[0].Question)

			require.NoError(t, st.DeleteSession(ctx, a.ID))
			_, err = st.GetSession(ctx, a.ID)
			assert.ErrorIs(t, err, exam.ErrNotFound)
			notes, err = st.ListNotes(ctx, a.ID)
			require.NoError(t, err)
			assert.Empty(t, notes)
		})
	}
}
