package cleanup

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// response is the JSON body of the cleanup trigger endpoint.
type response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Handler exposes the cleanup pass as a POST endpoint for an external
// scheduler. Invoking it more often than the schedule is harmless.
func Handler(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, response{
				Success:   false,
				Error:     "method not allowed",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		report, err := service.Run(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("cleanup run failed")
			writeJSON(w, http.StatusInternalServerError, response{
				Success:   false,
				Error:     err.Error(),
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}

		writeJSON(w, http.StatusOK, response{
			Success: true,
			Message: fmt.Sprintf("scanned %d rooms, deleted %d, failed %d",
				report.Scanned, report.Deleted, report.Failed),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write cleanup response")
	}
}
