package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	assessmentservice "kinerja/internal/assessment/service"
	assessmentstore "kinerja/internal/assessment/store/assessment"
	"kinerja/internal/compliance"
	indicatorservice "kinerja/internal/indicator/service"
	indicatorstore "kinerja/internal/indicator/store/indicator"
	targetstore "kinerja/internal/indicator/store/target"
	performanceservice "kinerja/internal/performance/service"
	datastore "kinerja/internal/performance/store/data"
	evidencestore "kinerja/internal/performance/store/evidence"
	reportservice "kinerja/internal/report/service"
	reportstore "kinerja/internal/report/store/report"
	auditmemory "kinerja/pkg/platform/audit/store/memory"
)

// newTestRouter wires the whole API against in-memory stores, the same way
// the server does without postgres.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	data := datastore.NewInMemoryStore()
	evidence := evidencestore.NewInMemoryStore()
	assessmentStore := assessmentstore.NewInMemoryStore()
	reportStore := reportstore.NewInMemoryStore()
	auditStore := auditmemory.NewInMemoryStore()
	indicatorStore := indicatorstore.NewInMemoryStore()
	targets := targetstore.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	indicators := indicatorservice.New(indicatorStore, targets, indicatorservice.PassthroughRunner{},
		indicatorservice.WithLogger(logger),
		indicatorservice.WithDataFlagger(data),
	)
	performance := performanceservice.New(data, evidence, indicators,
		performanceservice.WithLogger(logger),
	)
	assessments := assessmentservice.New(assessmentStore, indicators, performance, assessmentservice.PassthroughRunner{},
		assessmentservice.WithLogger(logger),
	)
	reports := reportservice.New(reportStore,
		reportservice.WithLogger(logger),
	)
	aggregator := compliance.New(compliance.StoreSources{
		IndicatorStore:  indicatorStore,
		SubmissionStore: data,
		EvidenceStore:   evidence,
		AssessmentStore: assessmentStore,
		ReportStore:     reportStore,
		AuditStore:      auditStore,
	}, compliance.WithLogger(logger))

	return NewRouter(Deps{
		Indicators:  indicators,
		Performance: performance,
		Assessments: assessments,
		Reports:     reports,
		Compliance:  aggregator,
		Logger:      logger,
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", testActorID.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

var testActorID = uuid.New()

func TestHealthzWithoutChecks(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", rec.Code)
	}
}

func TestSubmissionLifecycleViaHandlers(t *testing.T) {
	router := newTestRouter(t)
	institutionID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/indicators", map[string]any{
		"institution_id":     institutionID.String(),
		"name":               "Digital service coverage",
		"measurement_unit":   "percent",
		"calculation_method": "percentage",
		"category":           "input",
		"weight":             1.0,
		"mandatory":          true,
		"frequency":          "quarterly",
		"initial_target": map[string]any{
			"period": "2025-Q1",
			"value":  80,
			"weight": 1,
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating indicator, got %d: %s", rec.Code, rec.Body.String())
	}
	var indicator struct {
		ID uuid.UUID `json:"id"`
	}
	decodeBody(t, rec, &indicator)
	if indicator.ID == uuid.Nil {
		t.Fatalf("expected indicator id in response")
	}

	// The initial target starts pending; approve it via its review route.
	rec = doJSON(t, router, http.MethodGet, "/indicators/"+indicator.ID.String()+"/targets/2025-Q1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching target, got %d: %s", rec.Code, rec.Body.String())
	}
	var target struct {
		ID       uuid.UUID `json:"id"`
		Approval string    `json:"approval_status"`
	}
	decodeBody(t, rec, &target)
	if target.Approval != "pending" {
		t.Fatalf("expected pending target, got %q", target.Approval)
	}

	rec = doJSON(t, router, http.MethodPost, "/targets/"+target.ID.String()+"/review", map[string]any{
		"decision": "approved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 approving target, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/performance-data", map[string]any{
		"indicator_id":   indicator.ID.String(),
		"institution_id": institutionID.String(),
		"period":         "2025-Q1",
		"actual":         60,
		"data_source":    "quarterly census",
		"collected_at":   "2025-02-10T09:00:00Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 submitting data, got %d: %s", rec.Code, rec.Body.String())
	}
	var submission struct {
		ID          uuid.UUID `json:"id"`
		Achievement float64   `json:"achievement"`
	}
	decodeBody(t, rec, &submission)
	if submission.Achievement != 75 {
		t.Fatalf("expected achievement 75 for 60/80, got %v", submission.Achievement)
	}

	rec = doJSON(t, router, http.MethodPost, "/performance-data/"+submission.ID.String()+"/evidence", map[string]any{
		"file_name":   "coverage_report.pdf",
		"file_size":   512000,
		"storage_ref": "s3://evidence/coverage_report.pdf",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 attaching evidence, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/performance-data/"+submission.ID.String()+"/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 validating submission, got %d: %s", rec.Code, rec.Body.String())
	}
	var verdict struct {
		Result struct {
			IsValid      bool    `json:"is_valid"`
			QualityScore float64 `json:"quality_score"`
		} `json:"result"`
	}
	decodeBody(t, rec, &verdict)
	if !verdict.Result.IsValid {
		t.Fatalf("expected a clean submission to validate, got %+v", verdict.Result)
	}

	rec = doJSON(t, router, http.MethodGet,
		"/institutions/"+institutionID.String()+"/compliance/2025-Q1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from compliance report, got %d: %s", rec.Code, rec.Body.String())
	}
	var report struct {
		ComplianceScore float64 `json:"compliance_score"`
		Status          string  `json:"status"`
	}
	decodeBody(t, rec, &report)
	if report.Status == "" {
		t.Fatalf("expected a compliance status in response")
	}
}

func TestAssessmentFlowViaHandlers(t *testing.T) {
	router := newTestRouter(t)
	institutionID := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/indicators", map[string]any{
		"institution_id":     institutionID.String(),
		"name":               "Budget absorption",
		"measurement_unit":   "percent",
		"calculation_method": "percentage",
		"category":           "output",
		"weight":             1.0,
		"mandatory":          true,
		"frequency":          "annual",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating indicator, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/assessments", map[string]any{
		"institution_id": institutionID.String(),
		"period":         "2025",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 opening assessment, got %d: %s", rec.Code, rec.Body.String())
	}
	var opened struct {
		Assessment struct {
			ID uuid.UUID `json:"id"`
		} `json:"assessment"`
		Criteria []struct {
			ID uuid.UUID `json:"id"`
		} `json:"criteria"`
	}
	decodeBody(t, rec, &opened)
	if len(opened.Criteria) != 1 {
		t.Fatalf("expected one criterion for the mandatory indicator, got %d", len(opened.Criteria))
	}

	assessmentPath := "/assessments/" + opened.Assessment.ID.String()
	rec = doJSON(t, router, http.MethodPost, assessmentPath+"/scores", map[string]any{
		"scores": []map[string]any{
			{"criterion_id": opened.Criteria[0].ID.String(), "score": 85},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 scoring assessment, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, assessmentPath+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 submitting assessment, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, assessmentPath+"/review", map[string]any{
		"decision": "approved",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 approving assessment, got %d: %s", rec.Code, rec.Body.String())
	}
	var reviewed struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &reviewed)
	if reviewed.Status != "approved" {
		t.Fatalf("expected approved assessment, got %q", reviewed.Status)
	}
}

func TestValidationErrorEnvelope(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/indicators", map[string]any{
		"institution_id": "not-a-uuid",
		"name":           "x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid institution_id, got %d", rec.Code)
	}
	var envelope struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &envelope)
	if envelope.Error != "validation" {
		t.Fatalf("expected validation error code, got %q", envelope.Error)
	}
}

func TestUnknownSubmissionReturns404(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/performance-data/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown submission, got %d", rec.Code)
	}
}

func TestMalformedBodyReturns400(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/reports", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
