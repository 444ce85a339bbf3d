package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medify/internal/events"
	"github.com/Skufu/medify/internal/genai"
	"github.com/Skufu/medify/internal/metrics"
	"github.com/Skufu/medify/internal/prescription"
	"github.com/Skufu/medify/internal/recommend"
	"github.com/Skufu/medify/internal/storage"
)

type fakeAI struct {
	configured bool
	err        error
	block      bool

	plan       *genai.TreatmentPlan
	analysis   *genai.SymptomAnalysis
	suggestion *recommend.Recommendation
	hospitals  *genai.HospitalSearch

	gotImage genai.Image
	gotNotes string
	gotLat   float64
	gotLng   float64
}

func (f *fakeAI) wait(ctx context.Context) error {
	if f.block {
		<-ctx.Done()
		return fmt.Errorf("%w: %w", genai.ErrAPICallFailed, ctx.Err())
	}
	return f.err
}

func (f *fakeAI) Configured() bool { return f.configured }

func (f *fakeAI) TreatmentPlan(ctx context.Context, _ string, _ float64) (*genai.TreatmentPlan, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.plan, nil
}

func (f *fakeAI) AnalyzeSymptomImage(ctx context.Context, img genai.Image, notes string) (*genai.SymptomAnalysis, error) {
	f.gotImage, f.gotNotes = img, notes
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.analysis, nil
}

func (f *fakeAI) PrescriptionSuggestion(ctx context.Context, _ string) (*recommend.Recommendation, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.suggestion, nil
}

func (f *fakeAI) FindHospitals(ctx context.Context, lat, lng float64) (*genai.HospitalSearch, error) {
	f.gotLat, f.gotLng = lat, lng
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.hospitals, nil
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type brokenStore struct {
	*storage.Memory
	err error
}

func (b brokenStore) Ping(context.Context) error { return b.err }

func (b brokenStore) Save(context.Context, prescription.Prescription) error { return b.err }

func testOptions() Options {
	return Options{
		Store:     storage.NewMemory(),
		Events:    &recordingPublisher{},
		AI:        &fakeAI{configured: true},
		Metrics:   metrics.New(),
		Logger:    zerolog.Nop(),
		RateLimit: 100,
		RateBurst: 100,
		AITimeout: time.Second,
	}
}

func newTestRouter(t *testing.T, mutate func(*Options)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	opts := testOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return NewRouter(opts)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodGet, "/healthz", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if w.Header().Get(HeaderXRequestID) == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	router := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
}

func TestReadyz(t *testing.T) {
	t.Run("memory store", func(t *testing.T) {
		w := do(newTestRouter(t, nil), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"db":"disabled"`)
		assert.Contains(t, w.Body.String(), `"ai":"configured"`)
	})

	t.Run("database ok", func(t *testing.T) {
		w := do(newTestRouter(t, func(o *Options) {
			o.DBEnabled = true
			o.AI = &fakeAI{}
		}), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"db":"ok"`)
		assert.Contains(t, w.Body.String(), `"ai":"mock"`)
	})

	t.Run("database down", func(t *testing.T) {
		w := do(newTestRouter(t, func(o *Options) {
			o.DBEnabled = true
			o.Store = brokenStore{Memory: storage.NewMemory(), err: errors.New("connection refused")}
		}), http.MethodGet, "/readyz", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "degraded")
	})
}

func TestRecommendations(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodPost, "/api/recommendations", `{"symptoms":"Fever with headache and sore throat","age":30}`)
	require.Equal(t, http.StatusOK, w.Code)

	var rec recommend.Recommendation
	decode(t, w, &rec)
	assert.Equal(t, "Viral Pharyngitis", rec.Diagnosis)
	require.Len(t, rec.Items, 2)
	assert.Equal(t, "Paracetamol", rec.Items[0].Medicine)
	assert.Equal(t, 3, rec.Items[0].Dosage.DurationDays)
	assert.Empty(t, rec.Warnings)
}

func TestRecommendations_UrgentAndEmpty(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodPost, "/api/recommendations", `{"symptoms":"fever and chest pain"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var urgent recommend.Recommendation
	decode(t, w, &urgent)
	assert.Equal(t, []string{recommend.CardiorespiratoryWarning}, urgent.Warnings)
	assert.Empty(t, urgent.Items)

	w = do(router, http.MethodPost, "/api/recommendations", `{}`)
	require.Equal(t, http.StatusOK, w.Code)
	var empty recommend.Recommendation
	decode(t, w, &empty)
	assert.Equal(t, recommend.DefaultDiagnosis, empty.Diagnosis)
	assert.Equal(t, []string{recommend.NonSpecificWarning}, empty.Warnings)
	assert.NotNil(t, empty.Items)
}

func TestRecommendations_InvalidJSON(t *testing.T) {
	w := do(newTestRouter(t, nil), http.MethodPost, "/api/recommendations", `{"symptoms":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid payload")
}

func TestRecommendations_BodyLimit(t *testing.T) {
	body := `{"symptoms":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := do(newTestRouter(t, nil), http.MethodPost, "/api/recommendations", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)
	do(router, http.MethodPost, "/api/recommendations", `{"symptoms":"loose motion"}`)

	w := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `medify_recommendations_total{outcome="matched"} 1`)
	assert.Contains(t, w.Body.String(), `medify_http_requests_total{method="POST",route="/api/recommendations",status="200"} 1`)
}

const validPrescription = `{
	"patientId": "patient-7",
	"diagnosis": "Viral Pharyngitis",
	"allergies": ["NSAIDs"],
	"items": [
		{"medicine": "Paracetamol", "dosage": {"strength": "650 mg", "route": "oral", "frequency": "TID", "durationDays": 3}},
		{"medicine": "Ibuprofen", "dosage": {"strength": "400 mg", "route": "oral", "frequency": "BD", "durationDays": 3}}
	]
}`

func TestCreatePrescription(t *testing.T) {
	pub := &recordingPublisher{}
	router := newTestRouter(t, func(o *Options) { o.Events = pub })

	w := do(router, http.MethodPost, "/api/prescriptions", validPrescription)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp prescriptionResponse
	decode(t, w, &resp)
	assert.Equal(t, "patient-7", resp.Prescription.PatientID)
	require.Len(t, resp.Prescription.Items, 2)
	require.Len(t, resp.AllergyConflicts, 1)
	assert.Equal(t, "Ibuprofen", resp.AllergyConflicts[0].Medicine)
	assert.Equal(t, resp.Prescription.Items[1].ID.String(), resp.AllergyConflicts[0].ItemID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.PrescriptionCreated, pub.events[0].Type)

	w = do(router, http.MethodGet, "/api/prescriptions/"+resp.Prescription.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got prescription.Prescription
	decode(t, w, &got)
	assert.Equal(t, resp.Prescription.ID, got.ID)

	w = do(router, http.MethodGet, "/api/patients/patient-7/prescriptions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Prescriptions []prescription.Prescription `json:"prescriptions"`
	}
	decode(t, w, &list)
	require.Len(t, list.Prescriptions, 1)
	assert.Equal(t, resp.Prescription.ID, list.Prescriptions[0].ID)
}

func TestCreatePrescription_PublishFailureIgnored(t *testing.T) {
	router := newTestRouter(t, func(o *Options) {
		o.Events = &recordingPublisher{err: errors.New("redis down")}
	})

	w := do(router, http.MethodPost, "/api/prescriptions", validPrescription)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreatePrescription_Validation(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodPost, "/api/prescriptions", `{
		"items": [
			{"medicine": "Paracetamol", "dosage": {"route": "oral", "frequency": "TID", "durationDays": 3}},
			{"medicine": "", "dosage": {"route": "oral", "frequency": "OD", "durationDays": 0}}
		]
	}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error   string                    `json:"error"`
		Details []prescription.FieldError `json:"details"`
	}
	decode(t, w, &body)
	assert.Equal(t, "validation_failed", body.Error)
	fields := []string{}
	for _, d := range body.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"items[1].medicine", "items[1].dosage.durationDays"}, fields)

	w = do(router, http.MethodPost, "/api/prescriptions", `{"patientId":"p1","items":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "at least one item")
}

func TestCreatePrescription_StoreFailure(t *testing.T) {
	router := newTestRouter(t, func(o *Options) {
		o.Store = brokenStore{Memory: storage.NewMemory(), err: errors.New("disk full")}
	})

	w := do(router, http.MethodPost, "/api/prescriptions", validPrescription)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestGetPrescription_Errors(t *testing.T) {
	router := newTestRouter(t, nil)

	w := do(router, http.MethodGet, "/api/prescriptions/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodGet, "/api/prescriptions/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodGet, "/api/patients/nobody/prescriptions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prescriptions":[]}`, w.Body.String())
}

func TestTreatmentPlan(t *testing.T) {
	ai := &fakeAI{configured: true, plan: &genai.TreatmentPlan{DiagnosisSuggestion: "Gastritis", TotalCost: 300}}
	router := newTestRouter(t, func(o *Options) { o.AI = ai })

	w := do(router, http.MethodPost, "/api/ai/treatment-plan", `{"symptoms":"stomach ache","budget":500}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Gastritis")

	w = do(router, http.MethodPost, "/api/ai/treatment-plan", `{"budget":500}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/ai/treatment-plan", `{"symptoms":"x","budget":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAIErrors(t *testing.T) {
	cases := []struct {
		name   string
		ai     *fakeAI
		status int
	}{
		{"not configured", &fakeAI{err: genai.ErrNotConfigured}, http.StatusServiceUnavailable},
		{"timeout", &fakeAI{configured: true, block: true}, http.StatusGatewayTimeout},
		{"parse error", &fakeAI{configured: true, err: &genai.ParseError{Reason: "invalid JSON"}}, http.StatusBadGateway},
		{"upstream", &fakeAI{configured: true, err: fmt.Errorf("%w: status 500", genai.ErrAPICallFailed)}, http.StatusBadGateway},
		{"rate limited", &fakeAI{configured: true, err: fmt.Errorf("%w: %w", genai.ErrAPICallFailed, genai.ErrRateLimited)}, http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, func(o *Options) {
				o.AI = tc.ai
				o.AITimeout = 20 * time.Millisecond
			})

			w := do(router, http.MethodPost, "/api/ai/prescription", `{"symptoms":"fever"}`)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
			assert.NotContains(t, w.Body.String(), "invalid JSON")
		})
	}
}

func TestPrescriptionSuggestion(t *testing.T) {
	suggestion := recommend.Recommend(recommend.Query{Symptoms: "dry cough"})
	router := newTestRouter(t, func(o *Options) {
		o.AI = &fakeAI{configured: true, suggestion: &suggestion}
	})

	w := do(router, http.MethodPost, "/api/ai/prescription", `{"symptoms":"dry cough"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var rec recommend.Recommendation
	decode(t, w, &rec)
	assert.Equal(t, suggestion, rec)
}

func TestHospitals(t *testing.T) {
	ai := &fakeAI{configured: true, hospitals: &genai.HospitalSearch{Summary: "City Hospital", Places: []genai.Place{}}}
	router := newTestRouter(t, func(o *Options) { o.AI = ai })

	w := do(router, http.MethodPost, "/api/ai/hospitals", `{"latitude":12.97,"longitude":77.59}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12.97, ai.gotLat)
	assert.Equal(t, 77.59, ai.gotLng)

	for _, body := range []string{`{"latitude":91,"longitude":0}`, `{"latitude":0,"longitude":-181}`, `{"latitude":1}`} {
		w = do(router, http.MethodPost, "/api/ai/hospitals", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}

	w = do(router, http.MethodPost, "/api/ai/hospitals", `{"latitude":0,"longitude":0}`)
	assert.Equal(t, http.StatusOK, w.Code, "zero coordinates are valid")
}

func multipartImage(t *testing.T, contentType string, data []byte, notes string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if data != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="rash.png"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("notes", notes))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ai/symptom-analysis", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSymptomAnalysis(t *testing.T) {
	ai := &fakeAI{configured: true, analysis: &genai.SymptomAnalysis{Notes: "Contact dermatitis", InfectionRisk: "low", Advice: []string{"Avoid irritants"}}}
	router := newTestRouter(t, func(o *Options) { o.AI = ai })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartImage(t, "image/png", []byte("\x89PNG\r\n\x1a\npixels"), "itchy for 2 days"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "Contact dermatitis")
	assert.Equal(t, "image/png", ai.gotImage.MIMEType)
	assert.Equal(t, "itchy for 2 days", ai.gotNotes)
}

func TestSymptomAnalysis_Errors(t *testing.T) {
	router := newTestRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartImage(t, "", nil, "no image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, multipartImage(t, "image/jpeg", bytes.Repeat([]byte{1}, maxImageBytes+1), ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	invalid := newTestRouter(t, func(o *Options) {
		o.AI = &fakeAI{configured: true, err: fmt.Errorf("%w: unsupported type", genai.ErrInvalidImage)}
	})
	w = httptest.NewRecorder()
	invalid.ServeHTTP(w, multipartImage(t, "text/plain", []byte("hello"), ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	router := newTestRouter(t, func(o *Options) {
		o.RateLimit = 0.001
		o.RateBurst = 2
	})

	for i := 0; i < 2; i++ {
		w := do(router, http.MethodPost, "/api/recommendations", `{"symptoms":"fever"}`)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := do(router, http.MethodPost, "/api/recommendations", `{"symptoms":"fever"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = do(router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code, "health checks are not rate limited")

	req := httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader(`{"symptoms":"fever"}`))
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code, "limits are per client")
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := do(router, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestStaticFrontend(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>medify</html>"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	router := newTestRouter(t, func(o *Options) { o.StaticRoot = root })

	w := do(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medify")

	w = do(router, http.MethodGet, "/assets/app.js", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/patients/42", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medify")

	w = do(router, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetectStaticRoot(t *testing.T) {
	assert.Equal(t, "/srv/web", DetectStaticRoot("/srv/web"))

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("x"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(root))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	got, err := filepath.EvalSymlinks(DetectStaticRoot(""))
	require.NoError(t, err)
	assert.Equal(t, root, got)
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := do(router, http.MethodPost, "/echo", "12345")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := do(router, http.MethodPost, "/echo", "01234567890")
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}
