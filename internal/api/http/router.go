package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
	"github.com/mind-engage/mindengage-quiz/internal/storage"
	syncx "github.com/mind-engage/mindengage-quiz/internal/sync"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Store   exam.Store
	Users   *auth.UserStore
	Auth    *auth.AuthService
	Blobs   storage.BlobStore
	Events  syncx.Recorder
	Feed    *syncx.EventRepo // optional, enables GET /events
	Grader  *grading.Grader
	Log     logging.Logger
	Origins []string // CORS allow-list
	// RequestLog toggles chi's access log.
	RequestLog bool
}

func (d *Deps) defaults() {
	if d.Events == nil {
		d.Events = syncx.Nop{}
	}
	if d.Grader == nil {
		d.Grader = grading.NewGrader()
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
}

// record appends an event; failures are logged and never fail the request.
func (d Deps) record(ctx context.Context, typ, key string, data any) {
	if err := d.Events.Record(ctx, typ, key, data); err != nil {
		d.Log.Warn("event log append failed", "type", typ, "key", key, "err", err)
	}
}

func NewRouter(d Deps) http.Handler {
	d.defaults()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer, middleware.Timeout(30*time.Second))
	if len(d.Origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.Origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Users))
	if d.Blobs != nil {
		r.Get("/assets/*", GetAssetHandler(d.Blobs))
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermUsersCreate)).Post("/users", auth.CreateUserHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersCreate)).Get("/users", ListUsersHandler(d.Users))
		pr.With(rbac.Require(rbac.PermUsersCreate)).Patch("/users/{userID}/role", AdminUpdateUserRoleHandler(d.Users))
		pr.Post("/users/change-password", ChangePasswordHandler(d.Users))

		pr.With(rbac.Require(rbac.PermScorePreview)).Post("/score", ScorePreviewHandler(d.Grader))

		pr.Route("/sessions", func(sr chi.Router) {
			sr.With(rbac.Require(rbac.PermSessionCreate)).Post("/", CreateSessionHandler(d))
			sr.With(rbac.Require(rbac.PermSessionViewOwn)).Get("/", ListSessionsHandler(d))
			sr.Route("/{sessionID}", func(one chi.Router) {
				one.With(rbac.Require(rbac.PermSessionViewOwn)).Get("/", GetSessionHandler(d))
				one.With(rbac.Require(rbac.PermSessionSave)).Put("/progress", SaveProgressHandler(d))
				one.With(rbac.Require(rbac.PermSessionFinish)).Post("/finish", FinishSessionHandler(d))
				one.With(rbac.Require(rbac.PermSessionRestart)).Post("/restart", RestartSessionHandler(d))
				one.With(rbac.Require(rbac.PermSessionDelete)).Delete("/", DeleteSessionHandler(d))
				one.With(rbac.Require(rbac.PermNoteAppend)).Post("/notes", AppendNoteHandler(d))
				one.With(rbac.Require(rbac.PermSessionViewOwn)).Get("/notes", ListNotesHandler(d))
				one.With(rbac.Require(rbac.PermReportAppend)).Post("/reports", AppendReportHandler(d))
			})
		})

		if d.Blobs != nil {
			pr.With(rbac.Require(rbac.PermSessionCreate)).Post("/assets", UploadAssetHandler(d.Blobs))
		}
		if d.Feed != nil {
			pr.With(rbac.Require(rbac.PermUsersCreate)).Get("/events", ListEventsHandler(d.Feed))
		}
	})
	return r
}
