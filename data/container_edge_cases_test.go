package data

import (
	"sync"
	"testing"
	"time"

	"github.com/giygas/glycemia-api/interfaces"
	"github.com/giygas/glycemia-api/knowledgebase"
)

func TestDataContainer_GetServerStartTime(t *testing.T) {
	dc := NewDataContainer()

	if !dc.GetServerStartTime().IsZero() {
		t.Error("Expected zero start time before SetServerStartTime")
	}

	start := time.Now().Add(-time.Hour)
	dc.SetServerStartTime(start)

	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("Expected %v, got %v", start, dc.GetServerStartTime())
	}
}

func TestDataContainer_ConcurrentPublish(t *testing.T) {
	dc := NewDataContainer()

	const publishers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dc.Publish(knowledgebase.Default(), "", ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("Expected exactly one successful Publish, got %d", succeeded)
	}
}

func TestDataContainer_ConcurrentReads(t *testing.T) {
	dc := NewDataContainer()
	if err := dc.Publish(knowledgebase.Default(), "abc", ""); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 100)

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if kb := dc.KnowledgeBase(); kb == nil || kb.Version != knowledgebase.DefaultVersion {
					errs <- "unexpected knowledge base"
					return
				}
			}
		}()
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				dc.RecordDrift(interfaces.DriftStatus{Drifted: (i+j)%2 == 0})
				_ = dc.Drift()
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}
