package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/bosth/ottoman-routing/internal/config"
	"github.com/bosth/ottoman-routing/internal/control"
	"github.com/bosth/ottoman-routing/internal/geodata"
	"github.com/bosth/ottoman-routing/internal/metrics"
	"github.com/bosth/ottoman-routing/internal/server"
)

func main() {
	// Load base .env first, then .env.local (which overrides for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := config.Load()

	svc, closer, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to open geodata backend: %v", err)
	}
	if closer != nil {
		defer closer()
	}
	log.Printf("Geodata backend: %s", cfg.Backend)

	met := metrics.NewCollector()

	factory := func(ctx context.Context, surface control.MapSurface, view control.ItineraryView) (*control.Control, error) {
		return control.New(ctx, svc, surface, view, control.Options{
			Year:           cfg.DefaultYear,
			MaxSuggestions: cfg.SuggestionCap,
			Debounce:       cfg.DebounceWindow,
			Metrics:        met,
		})
	}

	srv := server.New(factory, met, cfg.SessionTTL)
	defer srv.Close()

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	// Health check endpoint with backend connectivity test
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		if _, err := svc.Features(ctx, cfg.DefaultYear); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("backend unavailable"))
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", met.Handler())
	r.Mount("/api", srv.Routes())

	log.Printf("Routing server starting on :%s", cfg.Port)
	log.Println("Session endpoints:")
	log.Println("  POST   /api/sessions")
	log.Println("  GET    /api/sessions/{sid}/features")
	log.Println("  GET    /api/sessions/{sid}/suggest?role=start|destination&q=...")
	log.Println("  POST   /api/sessions/{sid}/select")
	log.Println("  POST   /api/sessions/{sid}/click")
	log.Println("  GET    /api/sessions/{sid}/selected")
	log.Println("  GET    /api/sessions/{sid}/route")
	log.Println("  GET    /api/sessions/{sid}/nodes/{id}/names")
	log.Println("  POST   /api/sessions/{sid}/year")
	log.Println("  POST   /api/sessions/{sid}/viewport")
	log.Println("  DELETE /api/sessions/{sid}")
	log.Println("Health:")
	log.Println("  GET /health (with backend check)")
	log.Println("  GET /metrics")

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// openBackend picks the geodata service from configuration: the remote
// HTTP service, a local SQLite snapshot, or Postgres/pgRouting.
func openBackend(cfg *config.Config) (geodata.Service, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		store, err := geodata.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "postgres":
		store, err := geodata.NewPostgresStore(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return geodata.NewClient(cfg.GeodataURL), nil, nil
	}
}
