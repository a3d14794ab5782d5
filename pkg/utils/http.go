package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"gitlab.com/tapfield/rfid-tag-logger/pkg/logger"
)

// WriteJSONResponse writes data as JSON with the given status. Encoding
// failures can only be logged since the status line is already sent.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.Warn("Failed to encode JSON response", zap.Int("status", statusCode), zap.Error(err))
	}
}
