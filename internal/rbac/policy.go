package rbac

const (
	RoleLearner = "learner"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

const (
	PermSessionCreate  = "session:create"
	PermSessionViewOwn = "session:view-own"
	PermSessionViewAll = "session:view-all"
	PermSessionSave    = "session:save"
	PermSessionFinish  = "session:finish"
	PermSessionRestart = "session:restart"
	PermSessionDelete  = "session:delete"
	PermNoteAppend     = "note:append"
	PermReportAppend   = "report:append"
	PermScorePreview   = "score:preview"
	PermUsersCreate    = "users:create"
)

// RolePermissions is the default policy. Owner checks on a session are
// separate; "view-all" lets a role read other learners' sessions.
var RolePermissions = map[string][]string{
	RoleLearner: {
		PermSessionCreate,
		PermSessionViewOwn,
		PermSessionSave,
		PermSessionFinish,
		PermSessionRestart,
		PermSessionDelete,
		"note:*",
		PermReportAppend,
		PermScorePreview,
	},
	RoleTeacher: {
		"session:*",
		"note:*",
		"report:*",
		PermScorePreview,
	},
	RoleAdmin: {
		"*",
	},
}

// ValidRole reports whether r names a role of the default policy.
func ValidRole(r string) bool {
	_, ok := RolePermissions[r]
	return ok
}
