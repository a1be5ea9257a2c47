package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

var localCORSOrigins = []string{
	"http://localhost:3000", // local dev
	"http://localhost:5173",
}

// CORS returns middleware that applies the API's allowed origin policy. The
// configured web origin is always allowed alongside local dev hosts.
func CORS(webOrigin string) func(http.Handler) http.Handler {
	origins := append([]string{}, localCORSOrigins...)
	if webOrigin != "" {
		origins = append(origins, webOrigin)
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Selection-Session", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
