package api

import "net/http"

// Healthz is liveness only; it says the process is up, not that any camera
// is reachable.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
