package httpapi

import (
	"log"
	"net/http"

	"dineqr/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func NewRouter(handler *Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	handler.RegisterRoutes(r)
	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(r)
}

func StartServer(addr string, handler http.Handler) {
	log.Printf("Relay Service starting on %s", addr)
	log.Fatal(http.ListenAndServe(addr, handler))
}
