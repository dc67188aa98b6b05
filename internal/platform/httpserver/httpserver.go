package httpserver

import (
	"net/http"
	"time"
)

// New builds the service's HTTP server. Adjudication runs load findings and
// rules inline, so the write timeout is generous relative to the header read.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}
