package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGetWeekKey(t *testing.T) {
	tests := []struct {
		date     time.Time
		expected string
	}{
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), "2025-W01"},
		{time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), "2025-W11"},
		{time.Date(2021, 1, 3, 0, 0, 0, 0, time.UTC), "2020-W53"},
	}

	for _, tt := range tests {
		if got := getWeekKey(tt.date); got != tt.expected {
			t.Errorf("getWeekKey(%s) = %s, want %s", tt.date.Format("2006-01-02"), got, tt.expected)
		}
	}
}

func TestRotatingLogger(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)
	if err := rl.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	expected := filepath.Join(tempDir, "app-"+getWeekKey(time.Now())+".log")
	if _, err := os.Stat(expected); err != nil {
		t.Fatalf("Expected log file %s: %v", expected, err)
	}

	if _, err := rl.Write([]byte("Test log message\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(expected)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "Test log message") {
		t.Errorf("Log file does not contain message: %s", content)
	}
}

func TestRotatingLoggerWriteWithoutOpen(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	if _, err := rl.Write([]byte("lazy open\n")); err != nil {
		t.Fatalf("Write should open the current file, got %v", err)
	}
	if err := rl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestRotatingLoggerWithSizeLimit(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)
	if err := rl.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer rl.Close()

	line := []byte(strings.Repeat("x", 39) + "\n")
	for range 10 {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	week := getWeekKey(time.Now())
	parts, _ := filepath.Glob(filepath.Join(tempDir, fmt.Sprintf("app-%s_??.log", week)))
	if len(parts) < 4 {
		t.Fatalf("Expected at least 4 numbered parts, got %v", parts)
	}

	for _, p := range append(parts, filepath.Join(tempDir, "app-"+week+".log")) {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size() > 100 {
			t.Errorf("%s exceeds size limit: %d bytes", filepath.Base(p), info.Size())
		}
	}
}

func TestRotatingLoggerResumesNumberedPart(t *testing.T) {
	tempDir := t.TempDir()
	week := getWeekKey(time.Now())

	full := strings.Repeat("a", 200)
	if err := os.WriteFile(filepath.Join(tempDir, "app-"+week+".log"), []byte(full), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "app-"+week+"_01.log"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 100)
	if err := rl.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := rl.Write([]byte("more\n")); err != nil {
		t.Fatal(err)
	}
	rl.Close()

	content, _ := os.ReadFile(filepath.Join(tempDir, "app-"+week+"_01.log"))
	if string(content) != "partialmore\n" {
		t.Errorf("Expected write appended to part 01, got %q", content)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1)

	old := filepath.Join(tempDir, "app-2020-W01.log")
	recent := filepath.Join(tempDir, "app-2099-W01.log")
	other := filepath.Join(tempDir, "keep.txt")
	for _, f := range []string{old, recent, other} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-30 * 24 * time.Hour)
	for _, f := range []string{old, other} {
		if err := os.Chtimes(f, past, past); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := rl.cleanupOldLogs()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old log should be removed")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("recent log should be kept")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-log files should be kept")
	}
}

func TestRotatingLoggerConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLoggerWithSizeLimit(tempDir, 1, 1000)
	if err := rl.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 50 {
				if _, err := fmt.Fprintf(rl, "goroutine %d line %d\n", g, i); err != nil {
					t.Errorf("write failed: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	rl.Close()

	files, _ := filepath.Glob(filepath.Join(tempDir, "app-*.log"))
	lines := 0
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		lines += strings.Count(string(content), "\n")
	}
	if lines != 400 {
		t.Errorf("Expected 400 lines across files, got %d", lines)
	}
}

func TestRotatingLoggerInvalidDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	rl := NewRotatingLogger(filepath.Join(blocker, "logs"), 1)
	if err := rl.Open(); err == nil {
		rl.Close()
		t.Fatal("Expected error opening logger under a regular file")
	}
	if err := rl.Close(); err != nil {
		t.Errorf("Close after failed Open should succeed, got %v", err)
	}
}
