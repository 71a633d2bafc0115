package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/justinabrahms/piecewalk/internal/auth"
)

// NewRouter wires the API routes. When issuer is non-nil the mutating routes
// require a bearer token.
func NewRouter(service *Service, hub *Hub, issuer *auth.Issuer) *mux.Router {
	router := mux.NewRouter()

	// Add CORS middleware
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	protect := func(h http.HandlerFunc) http.Handler {
		if issuer == nil {
			return h
		}
		return issuer.Middleware(h)
	}

	// Routes live on the root router so a method mismatch answers 405.
	router.HandleFunc("/api/health", service.HealthHandler).Methods("GET")
	router.Handle("/api/setup", protect(service.SetupHandler)).Methods("POST", "OPTIONS")
	router.Handle("/api/play", protect(service.PlayHandler)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/positions", service.PositionsHandler).Methods("GET")
	router.HandleFunc("/api/pieces/{kind}", service.PieceHandler).Methods("GET")
	router.HandleFunc("/api/pieces/{kind}/moves", service.MovesHandler).Methods("GET")
	router.HandleFunc("/api/board", service.BoardHandler).Methods("GET")
	router.HandleFunc("/api/history", service.HistoryHandler).Methods("GET")
	router.HandleFunc("/api/archive", service.ArchiveHandler).Methods("GET")

	if hub != nil {
		router.HandleFunc("/ws", hub.ServeWS)
	}

	return router
}
