package handlers

import (
	"errors"
	"net/http"

	"veoqueue/internal/i18n"
	"veoqueue/internal/scheduler"
)

func (a *App) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Scheduler.Status())
}

// StartScheduler enters running mode; 409 while no valid key is selected.
func (a *App) StartScheduler(w http.ResponseWriter, r *http.Request) {
	if err := a.Scheduler.Start(); err != nil {
		if errors.Is(err, scheduler.ErrNotReady) {
			a.error(w, r, http.StatusConflict, "not_ready", i18n.MsgNotReady)
			return
		}
		a.error(w, r, http.StatusInternalServerError, "internal", i18n.MsgInternal)
		return
	}
	a.json(w, http.StatusOK, a.Scheduler.Status())
}

func (a *App) PauseScheduler(w http.ResponseWriter, r *http.Request) {
	a.Scheduler.Pause()
	a.json(w, http.StatusOK, a.Scheduler.Status())
}
