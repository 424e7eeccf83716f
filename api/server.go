/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Request counts and latency by route pattern
  6. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/auth/*                 Login, logout, session (public)
  /api/eligibility/*          Wage-increase calculator (public, saving needs a session)
  /api/offices/{office}/*     Clients, applications, deadlines, transfer, events
  /api/ocr/*                  Document extraction
  /api/demo/*                 Demo scenarios
  /api/monitor                Last deadline monitor pass
  /healthz, /metrics          Operations
  /*                          Static files (frontend)

STATIC FILE SERVING:
  Serves the built frontend from StaticDir when it exists.
  Falls back to index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/careerup/serve.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds router settings that come from configuration.
type RouterConfig struct {
	AllowedOrigins []string
	// StaticDir is the built frontend. Empty means ./web/dist.
	StaticDir string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.GetSession)
		})

		// The calculator works on the request body alone.
		r.Route("/eligibility", func(r chi.Router) {
			r.Post("/calculate", h.CalculateEligibility)
			r.Get("/months", h.ComparisonMonths)
		})

		r.Route("/offices/{office}", func(r chi.Router) {
			r.With(h.RequireStreamSession).Get("/events", h.StreamEvents)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireSession)

				// Client routes
				r.Route("/clients", func(r chi.Router) {
					r.Get("/", h.ListClients)
					r.Post("/", h.CreateClient)
					r.Get("/{id}", h.GetClient)
					r.Patch("/{id}", h.UpdateClient)
					r.Delete("/{id}", h.DeleteClient)
				})

				// Application routes
				r.Route("/applications", func(r chi.Router) {
					r.Get("/", h.ListApplications)
					r.Post("/", h.CreateApplication)
					r.Get("/{id}", h.GetApplication)
					r.Patch("/{id}", h.UpdateApplication)
					r.Delete("/{id}", h.DeleteApplication)
					r.Post("/{id}/status", h.ChangeStatus)
					r.Get("/{id}/history", h.GetStatusHistory)
					r.Put("/{id}/checklist", h.SetChecklist)
				})

				r.Get("/deadlines", h.ListDeadlines)
				r.Get("/export.json", h.ExportJSON)
				r.Get("/export.csv", h.ExportCSV)
				r.Post("/import", h.Import)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireSession)

			r.Post("/ocr/extract", h.ExtractDocument)

			// Scenario routes
			r.Route("/demo", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})

			r.Get("/monitor", h.GetMonitorReport)
		})
	})

	// Serve static files
	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = "./web/dist"
		if _, err := os.Stat(staticDir); os.IsNotExist(err) {
			// Try relative to executable
			exe, _ := os.Executable()
			staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
		}
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean(r.URL.Path))
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
	} else {
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<!DOCTYPE html>
<html lang="ja">
<head><meta charset="utf-8"><title>キャリアアップ助成金 申請管理</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>キャリアアップ助成金 申請管理 API</h1>
<p>フロントエンドはまだビルドされていません。<code>cd web && npm install && npm run build</code> を実行してください。</p>
<h2>API</h2>
<ul>
<li><code>POST /api/auth/login</code> - ログイン</li>
<li><code>GET /api/offices/{office}/applications</code> - 申請一覧</li>
<li><code>GET /api/offices/{office}/deadlines</code> - 申請期限</li>
<li><code>POST /api/eligibility/calculate</code> - 賃金上昇率の判定</li>
</ul>
</body>
</html>`))
		})
	}

	return r
}
