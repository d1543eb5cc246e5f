package api

import (
	"log/slog"
	"net/http"

	"github.com/lexia-ai/lexia/internal/auth"
	"github.com/lexia-ai/lexia/internal/dispatch"
	"github.com/lexia-ai/lexia/internal/health"
	"github.com/lexia-ai/lexia/internal/observe"
	"github.com/lexia-ai/lexia/internal/ratelimit"
	"github.com/lexia-ai/lexia/internal/store"
	"github.com/lexia-ai/lexia/pkg/backend/diarization"
	"github.com/lexia-ai/lexia/pkg/backend/stt"
	"github.com/lexia-ai/lexia/pkg/blob"
)

// Deps collects everything the HTTP layer is wired with. All fields except
// Metrics, Version, and Limits are required.
type Deps struct {
	Store      store.Store
	Auth       *auth.Authenticator
	Limiter    *ratelimit.Limiter
	Dispatcher *dispatch.Dispatcher
	Blobs      blob.Store
	STT        stt.Backend
	Diarizer   diarization.Backend
	Health     *health.Handler
	Log        *slog.Logger
	Metrics    *observe.Metrics

	Version      string
	CORSOrigins  []string
	MaxUploadMB  int
	MaxSyncMB    int
	DefaultQuota int
}

// Server owns the routes and handler state of the public API.
type Server struct {
	store      store.Store
	auth       *auth.Authenticator
	limiter    *ratelimit.Limiter
	dispatcher *dispatch.Dispatcher
	blobs      blob.Store
	stt        stt.Backend
	diarizer   diarization.Backend
	health     *health.Handler
	log        *slog.Logger
	metrics    *observe.Metrics

	version      string
	corsOrigins  []string
	maxUploadMB  int
	maxSyncMB    int
	defaultQuota int
}

// New builds a Server from its dependencies.
func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = observe.DefaultMetrics()
	}
	if d.MaxUploadMB <= 0 {
		d.MaxUploadMB = 100
	}
	if d.MaxSyncMB <= 0 {
		d.MaxSyncMB = 50
	}
	if d.DefaultQuota <= 0 {
		d.DefaultQuota = 60
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	return &Server{
		store:        d.Store,
		auth:         d.Auth,
		limiter:      d.Limiter,
		dispatcher:   d.Dispatcher,
		blobs:        d.Blobs,
		stt:          d.STT,
		diarizer:     d.Diarizer,
		health:       d.Health,
		log:          d.Log,
		metrics:      d.Metrics,
		version:      d.Version,
		corsOrigins:  d.CORSOrigins,
		maxUploadMB:  d.MaxUploadMB,
		maxSyncMB:    d.MaxSyncMB,
		defaultQuota: d.DefaultQuota,
	}
}

// Handler assembles the full route table. Protected routes run behind auth;
// mutating and compute-initiating routes additionally behind the rate
// limiter. Health, status GETs, and cancel stay exempt. Everything is
// wrapped in CORS and the request-metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Credential management. Issue is the unauthenticated bootstrap, so it
	// has no credential to rate-limit against; the authenticated mutations
	// share the caller's quota.
	mux.HandleFunc("POST /api-keys", s.handleIssueKey)
	mux.HandleFunc("GET /api-keys", s.withAuth(s.handleListKeys))
	mux.HandleFunc("POST /api-keys/{id}/revoke", s.withAuth(s.withRateLimit(s.handleRevokeKey)))
	mux.HandleFunc("DELETE /api-keys/{id}", s.withAuth(s.withRateLimit(s.handleDeleteKey)))

	// Async submission and results.
	mux.HandleFunc("POST /v1/transcriptions", s.withAuth(s.withRateLimit(s.handleCreateTranscription)))
	mux.HandleFunc("GET /v1/transcriptions/{id}", s.withAuth(s.handleGetTranscription))
	mux.HandleFunc("DELETE /v1/transcriptions/{id}", s.withAuth(s.withRateLimit(s.handleDeleteTranscription)))
	mux.HandleFunc("POST /v1/transcriptions/sync", s.withAuth(s.withRateLimit(s.handleSyncTranscription)))

	mux.HandleFunc("POST /v1/diarization", s.withAuth(s.withRateLimit(s.handleCreateDiarization)))
	mux.HandleFunc("GET /v1/diarization/{id}", s.withAuth(s.handleGetDiarization))
	mux.HandleFunc("POST /v1/diarization/sync", s.withAuth(s.withRateLimit(s.handleSyncDiarization)))

	// Job polling and cancellation. Cancel is exempt from rate limiting so a
	// caller over quota can still stop work.
	mux.HandleFunc("GET /v1/jobs", s.withAuth(s.handleListJobs))
	mux.HandleFunc("GET /v1/jobs/{id}", s.withAuth(s.handleGetJob))
	mux.HandleFunc("DELETE /v1/jobs/{id}", s.withAuth(s.handleCancelJob))

	// Unauthenticated health surface.
	serviceHealth := health.NewServiceHandler(s.version,
		health.Probe{Name: "stt", Check: s.stt.Health},
		health.Probe{Name: "diarization", Check: s.diarizer.Health},
	)
	mux.Handle("GET /health", serviceHealth)
	if s.health != nil {
		s.health.Register(mux)
	}

	var h http.Handler = mux
	h = withCORS(s.corsOrigins, h)
	h = observe.Middleware(s.metrics)(h)
	return h
}
