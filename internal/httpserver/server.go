// internal/httpserver/server.go
//
// HTTP server wiring for the minigames backend.
// Responsibilities:
//   - Router + middleware (request IDs, panic recovery, CORS, request logging,
//     timeouts and JSON content type on plain endpoints).
//   - Public endpoints: "/", "/health", demo games.
//   - Play endpoints (optional auth): /play, /sessions/*, /daily/*.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /plays/mine.
//   - Assignment and generation endpoints (require auth).
//   - Session janitor dropping idle sessions after the configured TTL.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - The websocket route sits outside the timeout group: streams live as long
//     as the client stays connected.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/internal/clock"
	"github.com/robalobadob/minigames/internal/completion"
	"github.com/robalobadob/minigames/internal/config"
	"github.com/robalobadob/minigames/internal/generate"
	"github.com/robalobadob/minigames/internal/store"
	"github.com/robalobadob/minigames/internal/words"
)

// Server bundles router, live session store, DB handle and services.
type Server struct {
	r        *chi.Mux
	cfg      *config.Config
	store    store.Store
	db       *sql.DB
	complete *completion.Service
	daily    *dailyServer
	gen      *generate.Generator
	sched    clock.Scheduler
}

// Option customises a Server.
type Option func(*Server)

// WithGenerator enables POST /generate.
func WithGenerator(g *generate.Generator) Option { return func(s *Server) { s.gen = g } }

// WithScheduler replaces the runtime timers driving game engines (tests).
func WithScheduler(sc clock.Scheduler) Option { return func(s *Server) { s.sched = sc } }

// New constructs a Server, installs middleware, and registers routes.
func New(cfg *config.Config, st store.Store, db *sql.DB, opts ...Option) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		cfg:      cfg,
		store:    st,
		db:       db,
		complete: completion.NewService(completion.NewStore(db)),
		sched:    clock.Real(),
	}
	for _, o := range opts {
		o(s)
	}

	timeout := cfg.HTTP.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	genTimeout := cfg.OpenAI.Timeout
	if genTimeout <= 0 {
		genTimeout = 2 * time.Minute
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(requestLogger)
	s.r.Use(chimw.Recoverer)
	s.r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.ClientOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Streams: no timeout, no forced content type.
	s.r.With(s.withOptionalAuth()).Get("/sessions/{id}/ws", s.handleSessionWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		r.Use(jsonContentType)

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"service": "minigames",
				"endpoints": []string{
					"/health", "POST /demo/{kind}", "POST /play", "/sessions/{id}",
					"/assignments", "/daily/*", "/auth/*",
				},
			})
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "words": words.Stats()})
		})

		// Play endpoints: OPTIONAL AUTH (guests can play)
		r.Group(func(r chi.Router) {
			r.Use(s.withOptionalAuth())
			r.Post("/demo/{kind}", s.handleDemo)
			r.Post("/play", s.handlePlay)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", s.handleSessionState)
				r.Post("/actions", s.handleSessionAction)
				r.Get("/events", s.handleSessionEvents)
				r.Delete("/", s.handleSessionDelete)
			})
			s.mountDaily(r)
		})

		// Auth + profile/stats
		s.mountAuthRoutes(r)

		// Assignments (require auth)
		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth())
			s.mountAssignments(r)
		})
	})

	// Generation makes two model round trips, so it gets its own deadline.
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(genTimeout))
		r.Use(jsonContentType)
		r.Use(s.requireAuth())
		r.Use(requireTeacher)
		r.Post("/generate", s.handleGenerate)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go s.RunJanitor(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// RunJanitor drops sessions older than the configured TTL (never, when the TTL
// is not positive) and forgets finished or stale daily rounds every interval
// until ctx is cancelled.
func (s *Server) RunJanitor(ctx context.Context, every time.Duration) {
	ttl := s.cfg.Sessions.TTL
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if ttl > 0 {
				if n := s.store.Prune(ctx, now.Add(-ttl)); n > 0 {
					log.Debug().Int("sessions", n).Msg("pruned idle sessions")
				}
			}
			if s.daily != nil {
				if n := s.daily.prune(ctx); n > 0 {
					log.Debug().Int("rounds", n).Msg("pruned daily rounds")
				}
			}
		}
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// requestLogger writes one zerolog line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			log.Debug().
				Str("reqId", chimw.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// ------------------------------ responses -----------------------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v, limited to 1 MiB.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
