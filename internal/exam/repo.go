package exam

import "context"

type ListOpts struct {
	OwnerID string // required for learners; empty lists everyone's (teacher/admin)
	Kind    Kind   // optional filter
	Limit   int
	Offset  int
}

// Store is the document-store collaborator the session host reads and writes.
// The scoring engine never calls it directly.
type Store interface {
	CreateSession(ctx context.Context, s Session) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, opts ListOpts) ([]SessionSummary, error)

	// SaveProgress replaces the progress snapshot; ErrFinished once a result exists.
	SaveProgress(ctx context.Context, id string, p Progress) error
	// SaveResult writes the final score exactly once and clears progress.
	SaveResult(ctx context.Context, id string, r Result) error
	// ResetSession clears finished, progress and result but keeps the questions.
	ResetSession(ctx context.Context, id string) (Session, error)
	DeleteSession(ctx context.Context, id string) error

	AppendNote(ctx context.Context, n Note) (Note, error)
	ListNotes(ctx context.Context, sessionID string) ([]Note, error)
	AppendReport(ctx context.Context, r Report) (Report, error)
}
