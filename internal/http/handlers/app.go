package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
	"genstudio/internal/validation"
)

// Uploads persists uploaded originals.
type Uploads interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Remove(key string) error
}

// Jobs schedules background processing of new generations.
type Jobs interface {
	Submit(g domain.Generation) error
	InFlight() int
}

// App carries the dependencies shared by every handler.
type App struct {
	Logger      zerolog.Logger
	Users       domain.UserRepository
	Generations domain.GenerationRepository
	Uploads     Uploads
	Jobs        Jobs

	JWTSecret       string
	JWTTTL          time.Duration
	UploadURLPrefix string
	MaxUploadBytes  int64
	// MaxInFlightJobs rejects new generations once reached. Zero disables it.
	MaxInFlightJobs int

	newID func() string
}

func NewApp(logger zerolog.Logger, users domain.UserRepository, generations domain.GenerationRepository, uploads Uploads, jobs Jobs) *App {
	return &App{
		Logger:          logger,
		Users:           users,
		Generations:     generations,
		Uploads:         uploads,
		Jobs:            jobs,
		JWTTTL:          7 * 24 * time.Hour,
		UploadURLPrefix: "/uploads",
		MaxUploadBytes:  validation.MaxImageBytes,
		newID:           uuid.NewString,
	}
}

type envelope struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	Data      any              `json:"data,omitempty"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) ok(w http.ResponseWriter, code int, msg string, data any) {
	a.json(w, code, envelope{Success: true, Message: msg, Data: data})
}

func (a *App) error(w http.ResponseWriter, code int, kind domain.ErrorKind, msg string) {
	a.json(w, code, envelope{Message: msg, ErrorKind: kind})
}

// fail maps err onto the response taxonomy. Anything unrecognized is logged
// and answered with a generic message.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		a.error(w, http.StatusBadRequest, domain.KindValidation, verr.Message)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, domain.KindNotFound, "Generation not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, domain.KindAuthorization, "Access denied")
	case errors.Is(err, domain.ErrOverloaded):
		a.error(w, http.StatusInternalServerError, domain.KindOverloaded, "Model overloaded, please try again")
	default:
		a.Logger.Error().Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, domain.KindInternal, "Internal server error")
	}
}

func (a *App) currentUserID(r *http.Request) int64 {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) assetURL(key string) string {
	return a.UploadURLPrefix + "/" + key
}
