package handler

import (
	"encoding/json"
	"net/http"

	"github.com/attaboy/settlement/internal/infra"
)

// HealthHandler returns a health check endpoint. A nil pinger (no database
// configured) reports unhealthy.
func HealthHandler(p infra.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := infra.HealthCheck(r.Context(), p)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}
