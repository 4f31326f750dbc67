package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"veoqueue/internal/auth"
	"veoqueue/internal/i18n"
	"veoqueue/internal/infra"
	"veoqueue/internal/jobstore"
	"veoqueue/internal/middleware"
	"veoqueue/internal/scheduler"
	"veoqueue/internal/storage"
)

// App bundles the dependencies shared by the HTTP handlers.
type App struct {
	Store        *jobstore.Store
	Scheduler    *scheduler.Scheduler
	Gate         *auth.Gate
	Files        *storage.FileStore
	DefaultModel string
	ImageMaxEdge int
	Logger       *infra.Logger
	Now          func() time.Time
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes a localized error envelope. key is an i18n message key.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, key string, args ...any) {
	locale := middleware.LocaleFromContext(r.Context())
	middleware.WriteError(w, r, status, code, i18n.T(locale, key, args...))
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *App) log() *infra.Logger {
	if a.Logger == nil {
		discard := zerolog.New(io.Discard)
		return &discard
	}
	return a.Logger
}
