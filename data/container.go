// Package data holds the published knowledge base. The table is loaded and
// validated once at startup, published through an atomic pointer and never
// swapped afterwards; readers never take a lock.
package data

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/glycemia-api/interfaces"
	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/logging"
)

// Compile-time check to ensure DataContainer implements KnowledgeStore
var _ interfaces.KnowledgeStore = (*DataContainer)(nil)

// ErrAlreadyPublished is returned by a second Publish
var ErrAlreadyPublished = errors.New("knowledge base already published")

// snapshot is what Publish stores; it is immutable once stored
type snapshot struct {
	kb       *knowledgebase.KnowledgeBase
	checksum string
	source   string
	loadedAt time.Time
}

// DataContainer holds the knowledge base and its drift status
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	serverStartTime atomic.Value // time.Time

	driftMu sync.RWMutex
	drift   interfaces.DriftStatus
}

// NewDataContainer creates an empty container
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// Publish stores kb. checksum is the SHA-256 of the source file (empty for
// the built-in table) and source the file path.
func (dc *DataContainer) Publish(kb *knowledgebase.KnowledgeBase, checksum, source string) error {
	if kb == nil {
		return errors.New("cannot publish a nil knowledge base")
	}
	if err := kb.Validate(); err != nil {
		return err
	}

	snap := &snapshot{kb: kb, checksum: checksum, source: source, loadedAt: time.Now()}
	if !dc.current.CompareAndSwap(nil, snap) {
		return ErrAlreadyPublished
	}

	logging.Info("Knowledge base published",
		"version", kb.Version,
		"rules", len(kb.Rules),
		"source", sourceName(source),
	)
	return nil
}

func sourceName(source string) string {
	if source == "" {
		return "built-in"
	}
	return source
}

// KnowledgeBase returns the published table, or nil before Publish
func (dc *DataContainer) KnowledgeBase() *knowledgebase.KnowledgeBase {
	if snap := dc.current.Load(); snap != nil {
		return snap.kb
	}

	logging.Warn("Knowledge base requested before it was published")
	return nil
}

// IsLoaded reports whether Publish has succeeded
func (dc *DataContainer) IsLoaded() bool {
	return dc.current.Load() != nil
}

// Checksum returns the checksum of the published source file
func (dc *DataContainer) Checksum() string {
	if snap := dc.current.Load(); snap != nil {
		return snap.checksum
	}
	return ""
}

// Source returns the guideline file path, empty for the built-in table
func (dc *DataContainer) Source() string {
	if snap := dc.current.Load(); snap != nil {
		return snap.source
	}
	return ""
}

// LoadedAt returns when the table was published
func (dc *DataContainer) LoadedAt() time.Time {
	if snap := dc.current.Load(); snap != nil {
		return snap.loadedAt
	}
	return time.Time{}
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// Drift returns the last recorded drift check
func (dc *DataContainer) Drift() interfaces.DriftStatus {
	dc.driftMu.RLock()
	defer dc.driftMu.RUnlock()
	return dc.drift
}

// RecordDrift stores the result of a drift check
func (dc *DataContainer) RecordDrift(status interfaces.DriftStatus) {
	dc.driftMu.Lock()
	dc.drift = status
	dc.driftMu.Unlock()
}
