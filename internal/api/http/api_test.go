package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/storage"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

type testAPI struct {
	srv    *httptest.Server
	feed   *syncx.EventRepo
	tokens map[string]string // role or name -> bearer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	blobs, err := storage.NewFSStore(t.TempDir(), "/assets")
	require.NoError(t, err)

	authSvc := auth.NewAuthService("test-secret")
	feed := syncx.NewEventRepo(conn, "test")
	api := &testAPI{feed: feed, tokens: map[string]string{}}
	api.srv = httptest.NewServer(NewRouter(Deps{
		Store:  exam.NewSQLStore(conn, string(db.DriverSQLite)),
		Users:  auth.NewUserStore(conn),
		Auth:   authSvc,
		Blobs:  blobs,
		Events: feed,
		Feed:   feed,
	}))
	t.Cleanup(api.srv.Close)

	for who, role := range map[string]string{
		"learner": rbac.RoleLearner, "other": rbac.RoleLearner,
		"teacher": rbac.RoleTeacher, "admin": rbac.RoleAdmin,
	} {
		tok, err := authSvc.IssueJWT("user-"+who, role)
		require.NoError(t, err)
		api.tokens[who] = tok
	}
	return api
}

func (a *testAPI) do(t *testing.T, who, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(t, err)
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+a.tokens[who])
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func examBody() map[string]any {
	return map[string]any{
		"title":        "Cell biology",
		"kind":         "exam",
		"duration_sec": 600,
		"questions": []map[string]any{
			{"text": "powerhouse", "options": map[string]string{"A": "mitochondria", "B": "nucleus"}, "correct_answer": "A"},
			{"text": "nucleic acids", "options": map[string]string{"A": "DNA", "B": "RNA", "C": "ATP"}, "correct_answer": []string{"A", "B"}},
		},
	}
}

func createSession(t *testing.T, a *testAPI, who string) exam.Session {
	t.Helper()
	code, body := a.do(t, who, http.MethodPost, "/sessions", examBody())
	require.Equal(t, http.StatusCreated, code, string(body))
	var s exam.Session
	require.NoError(t, json.Unmarshal(body, &s))
	return s
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)
	s := createSession(t, a, "learner")
	assert.Equal(t, "user-learner", s.OwnerID)
	base := "/sessions/" + s.ID

	code, body := a.do(t, "learner", http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"state":"not_started"`)

	progress := map[string]any{
		"currentQuestion": 7,
		"selectedAnswers": map[string][]string{"0": {"A"}, "1": {"A", "E"}},
		"timeLeft":        480,
	}
	code, body = a.do(t, "learner", http.MethodPut, base+"/progress", progress)
	require.Equal(t, http.StatusOK, code, string(body))
	var saved exam.Progress
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, 1, saved.CurrentQuestion, "pointer clamped")
	assert.Equal(t, exam.Selection{exam.LabelA}, saved.SelectedAnswers[1], "unknown option dropped")
	assert.Equal(t, 480, saved.TimeLeft)

	code, body = a.do(t, "learner", http.MethodPost, base+"/finish", map[string]any{})
	require.Equal(t, http.StatusConflict, code)
	assert.Contains(t, string(body), `"pending":"finish"`)

	code, body = a.do(t, "learner", http.MethodPost, base+"/finish", map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, code, string(body))
	var res exam.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Finished)
	assert.Equal(t, 10.0, res.AllOrNothing)
	assert.Equal(t, 15.0, res.Partial)
	assert.Equal(t, 15.0, res.PartialNegative)

	code, _ = a.do(t, "learner", http.MethodPut, base+"/progress", progress)
	assert.Equal(t, http.StatusConflict, code, "progress after finish")
	code, _ = a.do(t, "learner", http.MethodPost, base+"/finish", map[string]any{"confirm": true})
	assert.Equal(t, http.StatusConflict, code, "second finish")

	code, _ = a.do(t, "learner", http.MethodPost, base+"/restart", map[string]any{})
	assert.Equal(t, http.StatusConflict, code)
	code, body = a.do(t, "learner", http.MethodPost, base+"/restart", map[string]any{"confirm": true})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"state":"not_started"`)
	assert.NotContains(t, string(body), `"result"`)

	code, _ = a.do(t, "learner", http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = a.do(t, "learner", http.MethodDelete, base+"?confirm=true", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = a.do(t, "learner", http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, code)

	events, err := a.feed.Since(context.Background(), 0, 100)
	require.NoError(t, err)
	var types []string
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		syncx.TypeSessionCreated, syncx.TypeProgressSaved, syncx.TypeSessionFinished,
		syncx.TypeSessionRestarted, syncx.TypeSessionDeleted,
	}, types)
}

func TestTimedExam_ProgressNeedsTimeLeft(t *testing.T) {
	a := newTestAPI(t)
	s := createSession(t, a, "learner")
	base := "/sessions/" + s.ID

	noClock := map[string]any{
		"currentQuestion": 1,
		"selectedAnswers": map[string][]string{"0": {"A"}},
	}
	code, _ := a.do(t, "learner", http.MethodPut, base+"/progress", noClock)
	assert.Equal(t, http.StatusBadRequest, code)
	code, body := a.do(t, "learner", http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"state":"not_started"`)

	// finishing with an expired snapshot still scores it
	code, body = a.do(t, "learner", http.MethodPost, base+"/finish", map[string]any{"confirm": true, "progress": noClock})
	require.Equal(t, http.StatusOK, code, string(body))
	var res exam.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.True(t, res.Finished)
	assert.Equal(t, 10.0, res.AllOrNothing)
}

func TestCreateSession_Validation(t *testing.T) {
	a := newTestAPI(t)
	body := examBody()
	body["questions"] = []map[string]any{{"text": "no key", "options": map[string]string{"A": "x"}}}
	code, out := a.do(t, "learner", http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, string(out), "questions[0].correct_answer")

	body = examBody()
	body["kind"] = "survey"
	code, _ = a.do(t, "learner", http.MethodPost, "/sessions", body)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, "", http.MethodPost, "/sessions", examBody())
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestSessionVisibility(t *testing.T) {
	a := newTestAPI(t)
	s := createSession(t, a, "learner")
	createSession(t, a, "other")

	code, _ := a.do(t, "other", http.MethodGet, "/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(t, "teacher", http.MethodGet, "/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusOK, code)

	code, body := a.do(t, "learner", http.MethodGet, "/sessions?owner=user-other", nil)
	require.Equal(t, http.StatusOK, code)
	var mine []exam.SessionSummary
	require.NoError(t, json.Unmarshal(body, &mine))
	require.Len(t, mine, 1, "learners only ever list their own")
	assert.Equal(t, s.ID, mine[0].ID)

	code, body = a.do(t, "teacher", http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, code)
	var all []exam.SessionSummary
	require.NoError(t, json.Unmarshal(body, &all))
	assert.Len(t, all, 2)
}

func TestNotesAndReports(t *testing.T) {
	a := newTestAPI(t)
	s := createSession(t, a, "learner")
	base := "/sessions/" + s.ID

	code, _ := a.do(t, "learner", http.MethodPost, base+"/notes", map[string]any{"question": 5, "text": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.do(t, "learner", http.MethodPost, base+"/notes", map[string]any{"question": 1, "text": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = a.do(t, "learner", http.MethodPost, base+"/notes", map[string]any{"question": 1, "text": "RNA is single stranded"})
	assert.Equal(t, http.StatusCreated, code)

	code, body := a.do(t, "learner", http.MethodGet, base+"/notes", nil)
	require.Equal(t, http.StatusOK, code)
	var notes []exam.Note
	require.NoError(t, json.Unmarshal(body, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, "user-learner", notes[0].UserID)

	code, _ = a.do(t, "learner", http.MethodPost, base+"/reports", map[string]any{"question": 0, "reason": "B is also arguable"})
	assert.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, "other", http.MethodPost, base+"/reports", map[string]any{"question": 0, "reason": "spam"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestScorePreview(t *testing.T) {
	a := newTestAPI(t)
	body := map[string]any{
		"questions": examBody()["questions"],
		"answers":   map[string][]string{"0": {"A"}, "1": {"A", "C"}},
	}
	code, out := a.do(t, "learner", http.MethodPost, "/score", body)
	require.Equal(t, http.StatusOK, code, string(out))
	var got scoreResp
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, 10.0, got.AllOrNothing)
	assert.Equal(t, 15.0, got.Partial)
	assert.Equal(t, 12.5, got.PartialNegative)
	require.Len(t, got.PerQuestion, 2)
	assert.Equal(t, 1, got.PerQuestion[1].NumWrong)
}

func TestUsersAdminOnly(t *testing.T) {
	a := newTestAPI(t)
	newUser := map[string]string{"username": "lina", "password": "pw", "role": "teacher"}

	code, _ := a.do(t, "learner", http.MethodPost, "/users", newUser)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, "admin", http.MethodPost, "/users", newUser)
	assert.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, "admin", http.MethodPost, "/users", newUser)
	assert.Equal(t, http.StatusConflict, code)

	code, body := a.do(t, "", http.MethodPost, "/auth/login", map[string]string{"username": "lina", "password": "pw"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"role":"teacher"`)

	code, _ = a.do(t, "admin", http.MethodPatch, "/users/lina/role", map[string]string{"role": "learner"})
	assert.Equal(t, http.StatusNoContent, code)
	code, body = a.do(t, "admin", http.MethodGet, "/users?role=learner", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"username":"lina"`)

	code, _ = a.do(t, "admin", http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, "learner", http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAssetsUploadAndServe(t *testing.T) {
	a := newTestAPI(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "cell.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("\x89PNG-data"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, a.srv.URL+"/assets", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.tokens["teacher"])
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, strings.HasPrefix(out["url"], "/assets/questions/"))
	assert.True(t, strings.HasSuffix(out["url"], "/cell.png"))

	get, err := a.srv.Client().Get(a.srv.URL + out["url"])
	require.NoError(t, err)
	data, _ := io.ReadAll(get.Body)
	_ = get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
	assert.Equal(t, "image/png", get.Header.Get("Content-Type"))
	assert.Equal(t, "\x89PNG-data", string(data))

	code, _ := a.do(t, "", http.MethodGet, "/assets/questions/missing.png", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
