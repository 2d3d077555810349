package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/orbiterhq/orbiter/internal/proxy"
	"github.com/orbiterhq/orbiter/internal/ratelimit"
)

// SetupRoutes configures the /browser route surface.
func (h *Handler) SetupRoutes(proxyServer *proxy.Server, rateLimiter *ratelimit.Limiter, requestsPerHour int) *mux.Router {
	r := mux.NewRouter()

	browser := r.PathPrefix("/browser").Subrouter()

	// Lifecycle endpoints are rate limited per API key.
	limited := browser.PathPrefix("").Subrouter()
	limited.Use(RateLimitMiddleware(rateLimiter, requestsPerHour))

	limited.HandleFunc("/update", h.CreateBrowser).Methods("POST")
	limited.HandleFunc("/update/partial", h.UpdateBrowsers).Methods("POST")
	limited.HandleFunc("/open", h.OpenBrowser).Methods("POST")
	limited.HandleFunc("/close", h.CloseBrowser).Methods("POST")
	limited.HandleFunc("/delete", h.DeleteBrowser).Methods("POST")

	// The debug proxy is not rate limited: one CDP session holds a
	// single long-lived connection.
	browser.HandleFunc("/ws/{id}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		proxyServer.HandleDebugConnection(w, r, vars["id"])
	}).Methods("GET")

	return r
}
