package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skufu/medify/internal/genai"
)

type treatmentPlanRequest struct {
	Symptoms string  `json:"symptoms" binding:"required"`
	Budget   float64 `json:"budget" binding:"gte=0"`
}

type suggestionRequest struct {
	Symptoms string `json:"symptoms" binding:"required"`
}

type hospitalsRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

func (s *Server) treatmentPlan(c *gin.Context) {
	var req treatmentPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	s.runAI(c, "treatment_plan", func(ctx context.Context) (any, error) {
		return s.ai.TreatmentPlan(ctx, req.Symptoms, req.Budget)
	})
}

func (s *Server) prescriptionSuggestion(c *gin.Context) {
	var req suggestionRequest
	if !bindJSON(c, &req) {
		return
	}
	s.runAI(c, "prescription", func(ctx context.Context) (any, error) {
		return s.ai.PrescriptionSuggestion(ctx, req.Symptoms)
	})
}

func (s *Server) hospitals(c *gin.Context) {
	var req hospitalsRequest
	if !bindJSON(c, &req) {
		return
	}
	s.runAI(c, "hospitals", func(ctx context.Context) (any, error) {
		return s.ai.FindHospitals(ctx, *req.Latitude, *req.Longitude)
	})
}

func (s *Server) symptomAnalysis(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	if fh.Size > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image must be 5 MB or smaller"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable image"})
		return
	}
	if len(data) > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image must be 5 MB or smaller"})
		return
	}

	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	img := genai.Image{Data: data, MIMEType: strings.TrimSpace(strings.Split(mimeType, ";")[0])}
	notes := c.PostForm("notes")

	s.runAI(c, "symptom_analysis", func(ctx context.Context) (any, error) {
		return s.ai.AnalyzeSymptomImage(ctx, img, notes)
	})
}

// runAI bounds the call by the AI timeout, records metrics and maps the
// result onto the response.
func (s *Server) runAI(c *gin.Context, operation string, call func(ctx context.Context) (any, error)) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.aiTimeout)
	defer cancel()

	start := time.Now()
	result, err := call(ctx)
	s.metrics.AILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		status, msg := aiErrorResponse(err)
		s.metrics.AIRequests.WithLabelValues(operation, "error").Inc()
		s.logger.Warn().Err(err).
			Str("operation", operation).
			Int("status", status).
			Str("request_id", c.GetString(ContextRequestID)).
			Msg("AI request failed")
		c.JSON(status, gin.H{"error": msg})
		return
	}

	s.metrics.AIRequests.WithLabelValues(operation, "ok").Inc()
	c.JSON(http.StatusOK, result)
}

func aiErrorResponse(err error) (int, string) {
	var parseErr *genai.ParseError
	switch {
	case errors.Is(err, genai.ErrNotConfigured):
		return http.StatusServiceUnavailable, "AI service is not configured"
	case errors.Is(err, genai.ErrInvalidImage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "AI request timed out"
	case errors.Is(err, genai.ErrRateLimited):
		return http.StatusBadGateway, "AI service is busy, please try again later"
	case errors.Is(err, genai.ErrModelUnavailable):
		return http.StatusBadGateway, "AI model is temporarily unavailable"
	case errors.Is(err, genai.ErrBlocked):
		return http.StatusBadGateway, "AI declined to answer this request"
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "AI returned an invalid response"
	default:
		return http.StatusBadGateway, "AI request failed"
	}
}
