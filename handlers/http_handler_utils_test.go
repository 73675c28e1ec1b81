package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/glycemia-api/dosage"
	"github.com/giygas/glycemia-api/interfaces"
	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/risk"
)

// ============================================================================
// MOCK BUILDERS
// ============================================================================

// MockKnowledgeStore implements interfaces.KnowledgeStore
type MockKnowledgeStore struct {
	kb        *knowledgebase.KnowledgeBase
	checksum  string
	source    string
	loadedAt  time.Time
	startTime time.Time
	drift     interfaces.DriftStatus
}

func (m *MockKnowledgeStore) KnowledgeBase() *knowledgebase.KnowledgeBase {
	return m.kb
}

func (m *MockKnowledgeStore) Checksum() string {
	return m.checksum
}

func (m *MockKnowledgeStore) Source() string {
	return m.source
}

func (m *MockKnowledgeStore) LoadedAt() time.Time {
	return m.loadedAt
}

func (m *MockKnowledgeStore) IsLoaded() bool {
	return m.kb != nil
}

func (m *MockKnowledgeStore) GetServerStartTime() time.Time {
	return m.startTime
}

func (m *MockKnowledgeStore) Drift() interfaces.DriftStatus {
	return m.drift
}

func (m *MockKnowledgeStore) RecordDrift(status interfaces.DriftStatus) {
	m.drift = status
}

// MockKnowledgeStoreBuilder provides fluent interface for building mock stores
type MockKnowledgeStoreBuilder struct {
	mock *MockKnowledgeStore
}

func NewMockKnowledgeStoreBuilder() *MockKnowledgeStoreBuilder {
	now := time.Now()
	return &MockKnowledgeStoreBuilder{
		mock: &MockKnowledgeStore{
			kb:        knowledgebase.Default(),
			loadedAt:  now,
			startTime: now,
		},
	}
}

func (b *MockKnowledgeStoreBuilder) WithKnowledgeBase(kb *knowledgebase.KnowledgeBase) *MockKnowledgeStoreBuilder {
	b.mock.kb = kb
	return b
}

func (b *MockKnowledgeStoreBuilder) WithSource(source, checksum string) *MockKnowledgeStoreBuilder {
	b.mock.source = source
	b.mock.checksum = checksum
	return b
}

func (b *MockKnowledgeStoreBuilder) Build() *MockKnowledgeStore {
	return b.mock
}

// MockHealthChecker implements interfaces.HealthChecker
type MockHealthChecker struct {
	status     string
	data       map[string]any
	httpStatus int
}

func (m *MockHealthChecker) HealthCheck() (string, map[string]any, int) {
	return m.status, m.data, m.httpStatus
}

// MockHealthCheckerBuilder provides fluent interface for building mock health checkers
type MockHealthCheckerBuilder struct {
	mock *MockHealthChecker
}

func NewMockHealthCheckerBuilder() *MockHealthCheckerBuilder {
	return &MockHealthCheckerBuilder{
		mock: &MockHealthChecker{
			status:     "healthy",
			data:       map[string]any{"uptime": "1m 0s"},
			httpStatus: http.StatusOK,
		},
	}
}

func (b *MockHealthCheckerBuilder) WithStatus(status string, httpStatus int) *MockHealthCheckerBuilder {
	b.mock.status = status
	b.mock.httpStatus = httpStatus
	return b
}

func (b *MockHealthCheckerBuilder) Build() *MockHealthChecker {
	return b.mock
}

// MockDosageCalculator returns a fixed result or error
type MockDosageCalculator struct {
	result dosage.Result
	err    error
}

func (m *MockDosageCalculator) Calculate(req dosage.Request) (dosage.Result, error) {
	return m.result, m.err
}

func (m *MockDosageCalculator) Policy() dosage.Policy {
	return dosage.DefaultPolicy()
}

// ============================================================================
// HANDLER FACTORY
// ============================================================================

const testMaxBody = 4096

// newTestHandler wires the real calculator and classifier over the default
// knowledge base
func newTestHandler(t testing.TB) *HTTPHandlerImpl {
	t.Helper()
	store := NewMockKnowledgeStoreBuilder().Build()

	calculator, err := dosage.NewCalculator(dosage.DefaultPolicy())
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}
	classifier, err := risk.NewClassifier(store.KnowledgeBase())
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}

	return NewHTTPHandler(store, calculator, classifier, NewMockHealthCheckerBuilder().Build(), testMaxBody).(*HTTPHandlerImpl)
}

// ============================================================================
// HTTP TEST HELPER
// ============================================================================

// HTTPTestHelper provides common test operations
type HTTPTestHelper struct {
	t *testing.T
}

func NewHTTPTestHelper(t *testing.T) *HTTPTestHelper {
	return &HTTPTestHelper{t: t}
}

// ExecuteRequest runs handler against a request with an optional JSON body
func (h *HTTPTestHelper) ExecuteRequest(handler http.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// AssertJSONResponse checks the status and decodes the body into target
func (h *HTTPTestHelper) AssertJSONResponse(resp *httptest.ResponseRecorder, expectedStatus int, target any) {
	h.t.Helper()
	if resp.Code != expectedStatus {
		h.t.Fatalf("Expected status %d, got %d: %s", expectedStatus, resp.Code, resp.Body.String())
	}

	if ct := resp.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		h.t.Errorf("Expected JSON content type, got %s", ct)
	}

	if target != nil {
		if err := json.Unmarshal(resp.Body.Bytes(), target); err != nil {
			h.t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

// AssertErrorResponse checks the status, error code and field of an error body
func (h *HTTPTestHelper) AssertErrorResponse(resp *httptest.ResponseRecorder, expectedStatus int, expectedError, expectedField string) ErrorResponse {
	h.t.Helper()
	var body ErrorResponse
	h.AssertJSONResponse(resp, expectedStatus, &body)

	if body.Error != expectedError {
		h.t.Errorf("Expected error %q, got %q (%s)", expectedError, body.Error, body.Message)
	}
	if expectedField != "" && body.Field != expectedField {
		h.t.Errorf("Expected field %q, got %q", expectedField, body.Field)
	}
	if body.Code != expectedStatus {
		h.t.Errorf("Expected code %d in body, got %d", expectedStatus, body.Code)
	}
	return body
}
