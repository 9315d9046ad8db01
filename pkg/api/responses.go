package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/speedrun-hq/paywatch/pkg/models"
	"github.com/speedrun-hq/paywatch/pkg/store"
)

// errorEnvelope is the shape of every error response.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorDetail{Code: code, Message: message}})
}

// respondError maps service errors onto the documented status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "intent not found")
		return
	case errors.Is(err, store.ErrDuplicateReference):
		writeError(w, http.StatusConflict, "DUPLICATE_REFERENCE", "reference already in use")
		return
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, "DUPLICATE_ID", "intent id already in use")
		return
	}

	var domainErr *models.Error
	if errors.As(err, &domainErr) {
		status := http.StatusBadRequest
		switch domainErr.Code {
		case models.CodeChainMismatch:
			status = http.StatusUnprocessableEntity
		case models.CodeRPCError:
			status = http.StatusBadGateway
		}
		writeError(w, status, string(domainErr.Code), domainErr.Message)
		return
	}

	s.logger.Error("request failed: %v", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
