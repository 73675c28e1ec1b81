// Package interfaces defines core abstractions for the glycemia API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"net/http"
	"time"

	"github.com/giygas/glycemia-api/dosage"
	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/risk"
)

// DriftStatus is the result of the last comparison between the guideline
// file on disk and the table loaded at startup
type DriftStatus struct {
	CheckedAt    time.Time
	Drifted      bool
	DiskChecksum string
	Err          string // file unreadable; not a drift
}

// KnowledgeStore defines the contract for the published knowledge base.
// The table is published once at startup and never swapped; only the drift
// status changes afterwards.
type KnowledgeStore interface {
	// Published table
	KnowledgeBase() *knowledgebase.KnowledgeBase
	Checksum() string
	Source() string // guideline file path, empty for the built-in table
	LoadedAt() time.Time
	IsLoaded() bool
	GetServerStartTime() time.Time

	// Drift tracking
	Drift() DriftStatus
	RecordDrift(status DriftStatus)
}

// DosageCalculator computes bolus recommendations
type DosageCalculator interface {
	Calculate(req dosage.Request) (dosage.Result, error)
	Policy() dosage.Policy
}

// RiskClassifier classifies sick-day risk
type RiskClassifier interface {
	Analyze(in risk.Input) (risk.Assessment, error)
	QuickCheck(glucose float64, hasSymptoms bool) risk.QuickResult
	KnowledgeBase() *knowledgebase.KnowledgeBase
}

// Scheduler defines the contract for background jobs (guideline drift checks)
type Scheduler interface {
	// Lifecycle management
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers.
// It provides a consistent interface for all API endpoints.
type HTTPHandler interface {
	// ServeHTTP implements the http.Handler interface
	ServeHTTP(w http.ResponseWriter, r *http.Request)

	// Dosage
	CalculateDose(w http.ResponseWriter, r *http.Request)
	ActiveInsulin(w http.ResponseWriter, r *http.Request)

	// Risk
	AnalyzeRisk(w http.ResponseWriter, r *http.Request)
	QuickCheck(w http.ResponseWriter, r *http.Request)

	Guidelines(w http.ResponseWriter, r *http.Request)
	// This will stay in all versions
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker defines the contract for health check functionality.
// It provides system health monitoring and reporting.
type HealthChecker interface {
	// HealthCheck returns current system health status and the HTTP code to serve
	HealthCheck() (status string, details map[string]any, httpStatus int)
}
