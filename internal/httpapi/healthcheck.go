package httpapi

import (
	"net/http"

	"humidity-monitor/internal/poller"
	"humidity-monitor/internal/utils"
)

// StatusSource reports the sampling loop's progress.
type StatusSource interface {
	Status() poller.Status
}

type healthResponse struct {
	State string `json:"status"`
	poller.Status
}

type healthchecker struct {
	src StatusSource
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if h.src == nil {
		utils.WriteError(w, http.StatusServiceUnavailable, "poller not running")
		return
	}
	st := h.src.Status()
	status := "ok"
	if st.ConsecutiveFailures > 0 {
		status = "degraded"
	}
	utils.WriteJSON(w, http.StatusOK, healthResponse{State: status, Status: st})
}

func registerHealthcheck(mux *http.ServeMux, src StatusSource) {
	h := &healthchecker{src: src}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
