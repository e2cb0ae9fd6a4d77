package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/CrowderSoup/kanban/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds everything the router wires into handlers.
type Dependencies struct {
	Auth     *services.AuthService
	Boards   *services.BoardService
	Columns  *services.ColumnService
	Cards    *services.CardService
	Comments *services.CommentService
	Hub      *services.Hub
	Store    Pinger

	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var collectors []prometheus.Collector
	if deps.Hub != nil {
		collectors = append(collectors, deps.Hub.Collector())
	}
	metrics := NewMetrics(collectors...)

	authMiddleware := NewAuthMiddleware(deps.Auth)
	authHandler := NewAuthHandler(deps.Auth)
	boardHandler := NewBoardHandler(deps.Boards)
	columnHandler := NewColumnHandler(deps.Columns)
	cardHandler := NewCardHandler(deps.Cards)
	commentHandler := NewCommentHandler(deps.Comments)

	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/healthz", healthz(deps.Store)).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Auth routes
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")

	// WebSocket route for board events; authenticates on its own
	if deps.Hub != nil {
		events := NewEventsHandler(deps.Auth, deps.Hub, originChecker(deps.AllowedOrigins))
		r.HandleFunc("/api/ws", events.HandleWebSocket).Methods("GET")
	}

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Auth)

	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")

	api.HandleFunc("/boards", boardHandler.List).Methods("GET")
	api.HandleFunc("/boards", boardHandler.Create).Methods("POST")
	api.HandleFunc("/boards/{id:[0-9]+}", boardHandler.Rename).Methods("PATCH")
	api.HandleFunc("/boards/{id:[0-9]+}", boardHandler.Delete).Methods("DELETE")

	// reorder is registered before the {id} routes it would otherwise shadow
	api.HandleFunc("/columns/reorder", columnHandler.Reorder).Methods("PATCH")
	api.HandleFunc("/columns", columnHandler.Create).Methods("POST")
	api.HandleFunc("/columns/{boardId:[0-9]+}", columnHandler.List).Methods("GET")
	api.HandleFunc("/columns/{id:[0-9]+}", columnHandler.Rename).Methods("PUT")
	api.HandleFunc("/columns/{id:[0-9]+}", columnHandler.Delete).Methods("DELETE")
	api.HandleFunc("/columns/{id:[0-9]+}/move", columnHandler.Move).Methods("POST")

	api.HandleFunc("/cards/reorder", cardHandler.Reorder).Methods("PATCH")
	api.HandleFunc("/cards", cardHandler.Create).Methods("POST")
	api.HandleFunc("/cards/{columnId:[0-9]+}", cardHandler.List).Methods("GET")
	api.HandleFunc("/cards/{id:[0-9]+}", cardHandler.Update).Methods("PUT")
	api.HandleFunc("/cards/{id:[0-9]+}", cardHandler.Delete).Methods("DELETE")
	api.HandleFunc("/cards/{id:[0-9]+}/move", cardHandler.Move).Methods("POST")

	api.HandleFunc("/comments", commentHandler.Create).Methods("POST")
	api.HandleFunc("/comments/{cardId:[0-9]+}", commentHandler.List).Methods("GET")
	api.HandleFunc("/comments/{id:[0-9]+}", commentHandler.Update).Methods("PUT")
	api.HandleFunc("/comments/{id:[0-9]+}", commentHandler.Delete).Methods("DELETE")

	c := cors.New(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	var h http.Handler = c.Handler(r)
	h = gorillahandlers.CustomLoggingHandler(io.Discard, h, accessLog(logger))
	h = gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(h)
	return h
}

// accessLog writes one structured line per request.
func accessLog(logger *slog.Logger) gorillahandlers.LogFormatter {
	return func(_ io.Writer, p gorillahandlers.LogFormatterParams) {
		logger.Info("request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"duration", time.Since(p.TimeStamp),
			"remote", p.Request.RemoteAddr,
		)
	}
}

func healthz(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				slog.Error("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// originChecker allows websocket handshakes from the configured CORS origins.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}
