package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string
	DBDSN    string

	BlobBasePath string // question media root

	AuthSecret    string
	SeedAdmin     bool
	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	AutosaveInterval time.Duration
	ScoreScale       float64
	ScorePenalty     float64
	PenaltyFloor     grading.Floor

	LogLevel string
}

// Load reads an optional .env file (or the given files) and then the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(envOr("MODE", string(ModeOffline)))
	floor, err := grading.ParseFloor(envOr("PENALTY_FLOOR", "question"))
	if err != nil {
		floor = grading.FloorPerQuestion
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		BlobBasePath:       envOr("BLOB_BASE_PATH", "./data"),
		AuthSecret:         envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		SeedAdmin:          envBool("SEED_ADMIN", true),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://quiz.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),
		AutosaveInterval:   envDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		ScoreScale:         envFloat("SCORE_SCALE", grading.DefaultScale),
		ScorePenalty:       envFloat("SCORE_PENALTY", grading.DefaultPenalty),
		PenaltyFloor:       floor,
		LogLevel:           envOr("LOG_LEVEL", "info"),
	}
}

// CORSOrigins returns the allow-list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

// GraderOptions turns the scoring keys into grading options.
func (c Config) GraderOptions() []grading.Option {
	return []grading.Option{
		grading.WithScale(c.ScoreScale),
		grading.WithPenalty(c.ScorePenalty),
		grading.WithFloor(c.PenaltyFloor),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	return f
}

// envDuration accepts Go durations ("45s") or plain seconds ("45").
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
