// Package server exposes the recommendation engine, the AI assistant and the
// prescription workspace over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Skufu/medify/internal/events"
	"github.com/Skufu/medify/internal/genai"
	"github.com/Skufu/medify/internal/metrics"
	"github.com/Skufu/medify/internal/recommend"
	"github.com/Skufu/medify/internal/storage"
)

const (
	maxBodyBytes      = 1 << 20
	maxImageBodyBytes = 8 << 20
	maxImageBytes     = 5 << 20

	defaultAITimeout = 60 * time.Second
)

// Assistant is the AI boundary used by the handlers. *genai.Service
// implements it.
type Assistant interface {
	Configured() bool
	TreatmentPlan(ctx context.Context, symptoms string, budget float64) (*genai.TreatmentPlan, error)
	AnalyzeSymptomImage(ctx context.Context, img genai.Image, notes string) (*genai.SymptomAnalysis, error)
	PrescriptionSuggestion(ctx context.Context, symptoms string) (*recommend.Recommendation, error)
	FindHospitals(ctx context.Context, lat, lng float64) (*genai.HospitalSearch, error)
}

var _ Assistant = (*genai.Service)(nil)

type Options struct {
	Store storage.PrescriptionStore
	// DBEnabled reports whether Store is backed by a database; readiness
	// shows "disabled" otherwise.
	DBEnabled bool
	Events    events.Publisher
	AI        Assistant
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	StaticRoot     string
	AllowedOrigins []string
	RateLimit      rate.Limit
	RateBurst      int
	AITimeout      time.Duration
}

type Server struct {
	store     storage.PrescriptionStore
	dbEnabled bool
	events    events.Publisher
	ai        Assistant
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	aiTimeout time.Duration
}

func New(opts Options) *Server {
	s := &Server{
		store:     opts.Store,
		dbEnabled: opts.DBEnabled,
		events:    opts.Events,
		ai:        opts.AI,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		aiTimeout: opts.AITimeout,
	}
	if s.store == nil {
		s.store = storage.NewMemory()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.ai == nil {
		s.ai = genai.NewService(nil, opts.Logger)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.aiTimeout <= 0 {
		s.aiTimeout = defaultAITimeout
	}
	return s
}

// NewRouter builds the HTTP handler with all middleware and routes.
func NewRouter(opts Options) *gin.Engine {
	s := New(opts)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	limit, burst := opts.RateLimit, opts.RateBurst
	if limit <= 0 {
		limit = 5
	}
	if burst <= 0 {
		burst = 10
	}

	router := gin.New()
	router.Use(
		RequestID(),
		AccessLog(s.logger),
		s.instrument(),
		Recovery(s.logger),
		cors.New(cors.Config{
			AllowOrigins:  origins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", HeaderXRequestID},
			ExposeHeaders: []string{HeaderXRequestID},
			MaxAge:        12 * time.Hour,
		}),
	)

	registerStatic(router, opts.StaticRoot)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.readyz)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := router.Group("/api", NewRateLimiter(limit, burst).Middleware())
	api.POST("/ai/symptom-analysis", limitBodySize(maxImageBodyBytes), s.symptomAnalysis)

	jsonAPI := api.Group("", limitBodySize(maxBodyBytes))
	jsonAPI.POST("/recommendations", s.recommend)
	jsonAPI.POST("/ai/treatment-plan", s.treatmentPlan)
	jsonAPI.POST("/ai/prescription", s.prescriptionSuggestion)
	jsonAPI.POST("/ai/hospitals", s.hospitals)
	jsonAPI.POST("/prescriptions", s.createPrescription)
	jsonAPI.GET("/prescriptions/:id", s.getPrescription)
	jsonAPI.GET("/patients/:patientId/prescriptions", s.listPrescriptions)

	return router
}

func (s *Server) readyz(c *gin.Context) {
	if !s.dbEnabled {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled", "ai": s.aiStatus()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     fmt.Sprintf("unhealthy: %v", err),
			"ai":     s.aiStatus(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok", "ai": s.aiStatus()})
}

func (s *Server) aiStatus() string {
	if s.ai.Configured() {
		return "configured"
	}
	return "mock"
}
