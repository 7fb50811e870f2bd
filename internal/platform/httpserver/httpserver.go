// Package httpserver builds the process's HTTP server with timeouts sized
// for an interactive reporting API.
package httpserver

import (
	"net/http"
	"time"
)

// Compliance aggregation is the slowest handler; WriteTimeout leaves it
// room while still bounding a stuck client.
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 2 * time.Minute
)

// New wraps the router in a server with bounded timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
