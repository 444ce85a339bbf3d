package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/medify/internal/events"
	"github.com/Skufu/medify/internal/prescription"
	"github.com/Skufu/medify/internal/recommend"
	"github.com/Skufu/medify/internal/storage"
)

type recommendationRequest struct {
	Symptoms  string   `json:"symptoms"`
	Age       *int     `json:"age"`
	Allergies []string `json:"allergies"`
}

type itemRequest struct {
	Medicine string           `json:"medicine"`
	Dosage   recommend.Dosage `json:"dosage"`
}

type prescriptionRequest struct {
	PatientID string        `json:"patientId"`
	Diagnosis string        `json:"diagnosis"`
	Notes     string        `json:"notes"`
	Items     []itemRequest `json:"items"`
	Allergies []string      `json:"allergies"`
}

type prescriptionResponse struct {
	Prescription     prescription.Prescription      `json:"prescription"`
	AllergyConflicts []prescription.AllergyConflict `json:"allergyConflicts"`
}

// bindJSON decodes the body into dst and writes the error response itself
// when it cannot.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	return false
}

func (s *Server) recommend(c *gin.Context) {
	var req recommendationRequest
	if !bindJSON(c, &req) {
		return
	}

	rec := recommend.Recommend(recommend.Query{
		Symptoms:  req.Symptoms,
		Age:       req.Age,
		Allergies: req.Allergies,
	})
	s.metrics.Recommendations.WithLabelValues(string(rec.Outcome())).Inc()

	c.JSON(http.StatusOK, rec)
}

func (s *Server) createPrescription(c *gin.Context) {
	var req prescriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	p := prescription.New(req.PatientID, req.Diagnosis, req.Notes)
	details := []prescription.FieldError{}
	if len(req.Items) == 0 {
		details = append(details, prescription.FieldError{Field: "items", Message: "at least one item is required"})
	}
	for i, it := range req.Items {
		next, err := p.AddItem(it.Medicine, it.Dosage)
		if err != nil {
			var verr *prescription.ValidationError
			if !errors.As(err, &verr) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build prescription"})
				return
			}
			for _, fe := range verr.Errors {
				fe.Field = fmt.Sprintf("items[%d].%s", i, fe.Field)
				details = append(details, fe)
			}
			continue
		}
		p = next
	}
	if len(details) > 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "validation_failed",
			"details": details,
		})
		return
	}

	if err := s.store.Save(c.Request.Context(), p); err != nil {
		s.logger.Error().Err(err).Str("prescription_id", p.ID.String()).Msg("save prescription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save prescription"})
		return
	}

	conflicts := prescription.CheckAllergies(p.Items, req.Allergies)
	s.publish(c, events.New(events.PrescriptionCreated, gin.H{
		"prescriptionId":   p.ID,
		"patientId":        p.PatientID,
		"itemCount":        len(p.Items),
		"allergyConflicts": len(conflicts),
	}))

	c.JSON(http.StatusCreated, prescriptionResponse{Prescription: p, AllergyConflicts: conflicts})
}

// publish never fails the request; delivery problems are only logged.
func (s *Server) publish(c *gin.Context, e events.Event) {
	if err := s.events.Publish(c.Request.Context(), e); err != nil {
		s.logger.Warn().Err(err).Str("event", e.Type).Str("event_id", e.ID.String()).Msg("publish event failed")
	}
}

func (s *Server) getPrescription(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prescription id"})
		return
	}

	p, err := s.store.Get(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "prescription not found"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("prescription_id", id.String()).Msg("get prescription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load prescription"})
		return
	}

	c.JSON(http.StatusOK, p)
}

func (s *Server) listPrescriptions(c *gin.Context) {
	patientID := strings.TrimSpace(c.Param("patientId"))

	list, err := s.store.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		s.logger.Error().Err(err).Str("patient_id", patientID).Msg("list prescriptions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list prescriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"prescriptions": list})
}
