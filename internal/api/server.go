package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/limaJavier/examtabling/internal/jobs"
	"github.com/limaJavier/examtabling/internal/snapshot"
	"github.com/limaJavier/examtabling/pkg/model"
	"go.uber.org/zap"
)

// Server exposes timetable generation and checking over HTTP
type Server struct {
	router     *chi.Mux
	registry   *jobs.Registry
	timetabler model.Timetabler
	store      snapshot.Store // Optional; finished runs are looked up there once the registry forgets them
	config     model.Configuration
	logger     *zap.Logger
}

func NewServer(
	registry *jobs.Registry,
	timetabler model.Timetabler,
	store snapshot.Store,
	config model.Configuration,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry:   registry,
		timetabler: timetabler,
		store:      store,
		config:     config,
		logger:     logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/timetables", func(r chi.Router) {
			r.Post("/", s.handleCreateTimetable)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTimetable)
				r.Get("/csv", s.handleGetTimetableCsv)
				r.Post("/checks", s.handleCheckTimetable)
			})
		})
		r.Post("/checks", s.handleCheck)
	})

	s.router = r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
