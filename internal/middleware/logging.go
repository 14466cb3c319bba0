package middleware

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			next.ServeHTTP(w, r)
			log.WithFields(log.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"ua":      r.Header.Get("User-Agent"),
				"elapsed": time.Since(begin).String(),
			}).Debug("request served")
		})
	}
}
