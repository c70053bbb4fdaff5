package utils

import (
	"encoding/json"
	"net/http"
	"time"
)

// Now stamps locally generated messages. Tests may replace it.
var Now = time.Now

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
