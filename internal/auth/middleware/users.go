package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidUser        = errors.New("username, password and a known role are required")
)

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"created_at"`
}

// UserStore keeps local accounts in the users table.
type UserStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db, now: time.Now} }

func (s *UserStore) Create(ctx context.Context, username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || !rbac.ValidRole(role) {
		return User{}, ErrInvalidUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.insert(ctx, username, string(hash), role)
}

func (s *UserStore) insert(ctx context.Context, username, hash, role string) (User, error) {
	u := User{ID: uuid.NewString(), Username: username, Role: role, CreatedAt: s.now().Unix()}
	if _, err := s.FindByUsername(ctx, username); err == nil {
		return User{}, ErrUserExists
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id,username,role,password_hash,created_at) VALUES ($1,$2,$3,$4,$5)`,
		u.ID, u.Username, u.Role, hash, u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// SeedAdmin creates the configured admin account with a pre-hashed password
// unless it already exists.
func (s *UserStore) SeedAdmin(ctx context.Context, username, bcryptHash string) error {
	_, err := s.insert(ctx, username, bcryptHash, rbac.RoleAdmin)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	return err
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `SELECT id,username,role,created_at FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	return u, err
}

// Authenticate checks a password against the stored bcrypt hash.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id,username,role,password_hash,created_at FROM users WHERE username=$1`, username).
		Scan(&u.ID, &u.Username, &u.Role, &hash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *AuthService, users *UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := users.Authenticate(r.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		tok, err := a.IssueJWT(u.ID, u.Role)
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": u.Role, "user_id": u.ID})
	}
}

// POST /users  { "username": "...", "password": "...", "role": "learner|teacher|admin" }
func CreateUserHandler(users *UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Role == "" {
			req.Role = rbac.RoleLearner
		}
		u, err := users.Create(r.Context(), req.Username, req.Password, req.Role)
		switch {
		case errors.Is(err, ErrInvalidUser):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		case errors.Is(err, ErrUserExists):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			http.Error(w, "create user", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(u)
	}
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrLastAdmin    = errors.New("cannot demote the last admin")
)

func (s *UserStore) List(ctx context.Context, role string) ([]User, error) {
	q := `SELECT id,username,role,created_at FROM users`
	args := []any{}
	if role != "" {
		q += ` WHERE role=$1`
		args = append(args, role)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY username`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetRole changes a user's role; target may be an id or a username.
func (s *UserStore) SetRole(ctx context.Context, target, role string) error {
	if !rbac.ValidRole(role) {
		return ErrInvalidUser
	}
	var id, cur string
	err := s.db.QueryRowContext(ctx, `SELECT id, role FROM users WHERE id=$1 OR username=$1`, target).Scan(&id, &cur)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if cur == rbac.RoleAdmin && role != rbac.RoleAdmin {
		var admins int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role=$1`, rbac.RoleAdmin).Scan(&admins); err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
	return err
}

// ChangePassword replaces the hash after checking the old password.
func (s *UserStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidUser
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), id)
	return err
}
