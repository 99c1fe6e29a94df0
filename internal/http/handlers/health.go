package handlers

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Loaded    bool      `json:"loaded"`
	FetchedAt time.Time `json:"fetched_at"`
	LastError string    `json:"last_error,omitempty"`
}

// Health reports liveness plus cache freshness. The service stays up when
// the remote store is down, so a failed refresh reports "degraded" with 200.
func Health(cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := cache.Status()
		resp := healthResponse{Status: "ok", Loaded: st.Loaded, FetchedAt: st.FetchedAt, LastError: st.LastError}
		if st.LastError != "" {
			resp.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
