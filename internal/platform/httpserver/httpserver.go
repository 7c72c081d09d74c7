package httpserver

import (
	"net/http"

	"visitledger/internal/platform/config"
)

// New builds the HTTP server. Handler timeouts are enforced by the router;
// these bound the connection itself.
func New(addr string, handler http.Handler, timeouts config.HTTP) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeaderTimeout,
		ReadTimeout:       timeouts.ReadTimeout,
		WriteTimeout:      timeouts.WriteTimeout,
		IdleTimeout:       timeouts.IdleTimeout,
	}
}
