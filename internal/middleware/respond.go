package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/thriftit-backend/internal/result"
)

func respondError(w http.ResponseWriter, status int, err error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result.FailureMessage[any](err, message))
}
