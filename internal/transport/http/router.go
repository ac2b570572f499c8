package http

import (
	"encoding/json"
	"log"
	"net/http"

	"season-quiz-service/internal/domain"
)

// NewRouter mounts the WebSocket endpoint and the JSON read endpoints.
func NewRouter(service AttemptService) http.Handler {
	ws := NewWSHandler(service)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("GET /progress", func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: errInvalidRequest.Code, Message: "missing X-User-ID"})
			return
		}
		report, err := service.GetProgress(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})
	mux.HandleFunc("GET /seasons", func(w http.ResponseWriter, r *http.Request) {
		seasons, err := service.ListSeasons(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, seasons)
	})
	return mux
}

var statusByKind = map[domain.Kind]int{
	domain.KindNotFound:    http.StatusNotFound,
	domain.KindConflict:    http.StatusConflict,
	domain.KindForbidden:   http.StatusForbidden,
	domain.KindValidation:  http.StatusBadRequest,
	domain.KindUnavailable: http.StatusServiceUnavailable,
	domain.KindInternal:    http.StatusInternalServerError,
}

func writeError(w http.ResponseWriter, err error) {
	payload := toErrorPayload(err)
	status, ok := statusByKind[domain.AsError(err).Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
