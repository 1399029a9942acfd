package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Moosv/simplefleet/internal/authz"
	"github.com/Moosv/simplefleet/internal/driver"
	"github.com/Moosv/simplefleet/internal/identity"
	"github.com/Moosv/simplefleet/internal/registry"
	"github.com/Moosv/simplefleet/internal/shared/auth"
	"github.com/Moosv/simplefleet/internal/shared/config"
	"github.com/Moosv/simplefleet/internal/shared/database"
	"github.com/Moosv/simplefleet/internal/shared/events"
	"github.com/Moosv/simplefleet/internal/shared/metrics"
	secmiddleware "github.com/Moosv/simplefleet/internal/shared/middleware"
	"github.com/Moosv/simplefleet/internal/trip"
)

// App holds all application dependencies
type App struct {
	Config   *config.Config
	DB       *database.DB
	Bus      *events.Bus
	Registry *registry.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Event bus is optional; without it the roster watcher stays off
	// and mutations simply skip publishing.
	bus, err := events.NewBus(ctx, cfg.KurrentDB)
	if err != nil {
		fmt.Printf("Warning: KurrentDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("KurrentDB event bus initialized")
	}

	// Legacy vehicle registry is optional.
	if cfg.Registry.Enabled {
		adapter := registry.New(cfg.Registry)
		if err := adapter.Start(ctx); err != nil {
			fmt.Printf("Warning: vehicle registry not available: %v\n", err)
		} else {
			app.Registry = adapter
			defer adapter.Stop()
			fmt.Println("Legacy vehicle registry connected")
		}
	}

	resolver := authz.Resolver{MasterEmail: cfg.Signup.MasterEmail}

	driverRepo := driver.NewRepository(db.Pool)
	driverService := driver.NewService(driverRepo, resolver, busOrNil(app.Bus), driverRegistry(app.Registry))
	driverHandler := driver.NewHandler(driverService)

	identityRepo := identity.NewRepository(db.Pool)
	identityHandler := identity.NewHandler(identityRepo, cfg.Auth, cfg.Signup, busOrNil(app.Bus))

	tripRepo := trip.NewRepository(db.Pool)
	tripHandler := trip.NewHandler(tripRepo, driverService, busOrNil(app.Bus), tripRegistry(app.Registry))

	if app.Bus != nil {
		watcher := driver.NewWatcher(driverRepo, app.Bus)
		if err := watcher.Start(ctx); err != nil {
			fmt.Printf("Warning: roster watcher failed to start: %v\n", err)
		} else {
			driverService.UseRoster(watcher)
			fmt.Println("Roster watcher started")
		}
	}

	loginLimiter := secmiddleware.NewIPRateLimiter(5, 10)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.BodyLimit)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Signup and login are public, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Middleware)
			r.Mount("/auth", identityHandler.Routes())
		})

		// Everything else requires a session.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))
			r.Mount("/", driverHandler.Routes())
			r.Mount("/trips", tripHandler.Routes())

			if app.Registry != nil {
				registryHandler := registry.NewHandler(app.Registry)
				r.Mount("/vehicles", registryHandler.Routes())
			}
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("SimpleFleet")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("KurrentDB:    %s:%d\n", cfg.KurrentDB.Host, cfg.KurrentDB.Port)
	fmt.Printf("Registry:     %v\n", cfg.Registry.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

// busOrNil avoids handing modules a non-nil interface wrapping a nil
// pointer.
func busOrNil(bus *events.Bus) events.EventBus {
	if bus == nil {
		return nil
	}
	return bus
}

func driverRegistry(a *registry.Adapter) driver.VehicleRegistry {
	if a == nil {
		return nil
	}
	return a
}

func tripRegistry(a *registry.Adapter) trip.VehicleRegistry {
	if a == nil {
		return nil
	}
	return a
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "SimpleFleet",
		"version": "1.0.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		if app.Registry != nil {
			if err := app.Registry.Health(r.Context()); err != nil {
				checks["registry"] = "not ready: " + err.Error()
			} else {
				checks["registry"] = "ready"
			}
		} else {
			checks["registry"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
