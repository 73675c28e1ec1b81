// Package health provides health checking functionality for the glycemia API.
package health

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/giygas/glycemia-api/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store interfaces.KnowledgeStore
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(store interfaces.KnowledgeStore) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store: store,
	}
}

// HealthCheck reports the published knowledge base and the last drift check.
// A drifted or unreadable guideline file degrades the service but keeps it
// serving, since the loaded table is still consistent.
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	uptime := time.Duration(0)
	if start := h.store.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	if !h.store.IsLoaded() {
		return "unhealthy", map[string]any{
			"uptime":         formatUptimeHuman(uptime),
			"uptime_seconds": math.Round(uptime.Seconds()),
			"knowledge_base": nil,
		}, http.StatusServiceUnavailable
	}

	kb := h.store.KnowledgeBase()
	drift := h.store.Drift()

	switch {
	case drift.Drifted, drift.Err != "":
		status = "degraded"
	default:
		status = "healthy"
	}

	source := h.store.Source()
	if source == "" {
		source = "built-in"
	}

	driftData := map[string]any{
		"drifted": drift.Drifted,
	}
	if !drift.CheckedAt.IsZero() {
		driftData["checked_at"] = drift.CheckedAt.Format(time.RFC3339)
	}
	if drift.DiskChecksum != "" {
		driftData["disk_checksum"] = drift.DiskChecksum
	}
	if drift.Err != "" {
		driftData["error"] = drift.Err
	}

	data = map[string]any{
		"uptime":         formatUptimeHuman(uptime),
		"uptime_seconds": math.Round(uptime.Seconds()),
		"knowledge_base": map[string]any{
			"version":   kb.Version,
			"rules":     len(kb.Rules),
			"source":    source,
			"checksum":  h.store.Checksum(),
			"loaded_at": h.store.LoadedAt().Format(time.RFC3339),
		},
		"drift": driftData,
	}

	return status, data, http.StatusOK
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}
