package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status    string `json:"status"`
	Running   bool   `json:"scheduler_running"`
	Ready     bool   `json:"credential_ready"`
	QueueSize int    `json:"queue_size"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if a.Scheduler != nil {
		st := a.Scheduler.Status()
		resp.Running = st.Running
		resp.Ready = st.Ready
		resp.QueueSize = st.Jobs.Idle
	}
	a.json(w, http.StatusOK, resp)
}
