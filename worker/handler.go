package worker

import (
	"encoding/json"
	"net/http"
)

// invocationResponse is the envelope every POST invocation returns.
type invocationResponse struct {
	Success         bool   `json:"success"`
	JobID           string `json:"jobId,omitempty"`
	PlanID          string `json:"planId,omitempty"`
	Status          string `json:"status"`
	Yielded         bool   `json:"yielded,omitempty"`
	NoJobsAvailable bool   `json:"noJobsAvailable,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Handler returns the invocation endpoint. Each POST runs at most one job;
// OPTIONS answers CORS preflight; every other method is rejected.
func (w *Worker) Handler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		switch r.Method {
		case http.MethodOptions:
			rw.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			rw.Header().Set("Allow", "POST, OPTIONS")
			writeJSON(rw, http.StatusMethodNotAllowed, invocationResponse{
				Success: false,
				Status:  "method_not_allowed",
				Error:   "only POST is supported",
			})
			return
		}

		outcome := w.RunOnce(r.Context())

		resp := invocationResponse{
			Success: outcome.Err == nil,
			JobID:   outcome.JobID,
			PlanID:  outcome.PlanID,
			Status:  outcome.Status,
			Yielded: outcome.Yielded,
		}
		status := http.StatusOK
		switch outcome.Status {
		case StatusNoJobs:
			resp.NoJobsAvailable = true
		case StatusFailed:
			// The job is settled in the queue; the invocation itself still
			// returns 200 so schedulers do not retry the same invocation.
			if outcome.Err != nil {
				resp.Error = outcome.Err.Error()
			}
			if outcome.JobID == "" {
				// Claim-level failure: nothing was settled.
				status = http.StatusInternalServerError
			}
		}
		writeJSON(rw, status, resp)
	})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
