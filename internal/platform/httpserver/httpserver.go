package httpserver

import (
	"net/http"
	"time"
)

// New builds the kiosk API server. Timeouts are short: clients are
// kiosks and front-desk terminals on the clinic LAN, not slow WAN links.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
