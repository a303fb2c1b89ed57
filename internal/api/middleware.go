package api

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
)

// Recoverer turns a handler panic into a 500 with the usual JSON error body
// and keeps the server running. http.ErrAbortHandler is re-raised so net/http
// can abort the connection as it expects.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			log.Printf("[API] Panic serving %s %s (request_id=%s): %v\n%s",
				r.Method, r.URL.Path, middleware.GetReqID(r.Context()), rvr, debug.Stack())

			respondErrorDetail(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("%v", rvr))
		}()

		next.ServeHTTP(w, r)
	})
}
