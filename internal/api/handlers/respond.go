package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/this-th/snomed-endoproc-lookup/pkg/errors"
)

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{Error: message})
}

// respondWithAppError writes any error as its normalized kind and status.
// Internal details stay in the log.
func respondWithAppError(w http.ResponseWriter, err error) {
	appErr := apperrors.Normalize(err)
	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("kind", string(appErr.Type)).Msg("Request failed")
	}
	respondWithJSON(w, status, errorResponse{Error: appErr.Message, Kind: string(appErr.Type)})
}
