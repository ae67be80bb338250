// Package httpserver constructs the process's http.Server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns the server hosting the webhook and admin surface. Per-request
// deadlines live in the router's middleware chain; the server itself only
// bounds header reads and idle keep-alives.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
