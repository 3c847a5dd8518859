package scramble

import (
	"encoding/json"
	"net/http"
)

// Generate is a placeholder. Scramble generation lives client-side for now;
// the route is reserved.
func Generate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotImplemented)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "not implemented"})
}
