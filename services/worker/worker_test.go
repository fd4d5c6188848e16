package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"sjsage522/pricewatch/helpers"
	"sjsage522/pricewatch/internal/monitor"
	"sjsage522/pricewatch/services/publisher"

	"github.com/stretchr/testify/assert"
)

// MockChecker implements BulkChecker for testing
type MockChecker struct {
	mu     sync.Mutex
	runs   int
	result *monitor.BulkResult
	err    error
}

// Ensure MockChecker implements BulkChecker
var _ BulkChecker = (*MockChecker)(nil)

func (m *MockChecker) CheckAll(ctx context.Context) (*monitor.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return m.result, m.err
}

func (m *MockChecker) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu      sync.Mutex
	trims   int
	trimErr error
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return m.trimErr
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

// Ensure MockLogger implements helpers.LoggerInterface
var _ helpers.LoggerInterface = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{
		errors: make([]string, 0),
		infos:  make([]string, 0),
	}
}

func (m *MockLogger) LogError(component string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, component+": "+err.Error())
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, fmt.Sprintf(format, args...))
}

func sampleResult() *monitor.BulkResult {
	return &monitor.BulkResult{
		Results: []monitor.CheckResult{
			{ProductID: "p1", Success: true, PriceDrop: true},
			{ProductID: "p2", Success: false, Error: "timed out"},
			{ProductID: "p3", Success: true},
		},
		TotalChecked: 3,
	}
}

// TestWorkerRunOnce tests a single check cycle
func TestWorkerRunOnce(t *testing.T) {
	mockLogger := NewMockLogger()
	mockPublisher := &MockPublisher{}
	checker := &MockChecker{result: sampleResult()}

	w := NewWorker(context.Background(), checker, mockPublisher, mockLogger, time.Hour)
	w.runOnce()

	assert.Equal(t, 1, checker.Runs())
	assert.Equal(t, 1, mockPublisher.trims)
	assert.Empty(t, mockLogger.errors, "No errors should have been logged")
	if assert.Len(t, mockLogger.infos, 1) {
		assert.Contains(t, mockLogger.infos[0], "Checked 3 products")
		assert.Contains(t, mockLogger.infos[0], "1 drops, 1 failed")
	}
}

// TestWorkerWithError tests error handling in the worker
func TestWorkerWithError(t *testing.T) {
	mockLogger := NewMockLogger()
	mockPublisher := &MockPublisher{}
	checker := &MockChecker{err: errors.New("test error")}

	w := NewWorker(context.Background(), checker, mockPublisher, mockLogger, time.Hour)
	w.runOnce()

	assert.NotEmpty(t, mockLogger.errors, "An error should have been logged")
	assert.Contains(t, mockLogger.errors[0], "CheckAll")
	assert.Contains(t, mockLogger.errors[0], "test error")
	assert.Equal(t, 0, mockPublisher.trims, "Streams are not trimmed after a failed run")
}

func TestWorkerTrimError(t *testing.T) {
	mockLogger := NewMockLogger()
	mockPublisher := &MockPublisher{trimErr: errors.New("redis down")}

	w := NewWorker(context.Background(), &MockChecker{result: sampleResult()}, mockPublisher, mockLogger, time.Hour)
	w.runOnce()

	if assert.Len(t, mockLogger.errors, 1) {
		assert.Contains(t, mockLogger.errors[0], "StreamTrimming")
	}
}

func TestWorkerWithoutPublisher(t *testing.T) {
	mockLogger := NewMockLogger()

	w := NewWorker(context.Background(), &MockChecker{result: sampleResult()}, nil, mockLogger, time.Hour)
	w.runOnce()

	assert.Empty(t, mockLogger.errors)
}

// TestWorkerStart tests the periodic loop and its shutdown
func TestWorkerStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	checker := &MockChecker{result: &monitor.BulkResult{}}

	w := NewWorker(ctx, checker, nil, NewMockLogger(), 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()

	assert.Eventually(t, func() bool { return checker.Runs() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorkerDisabled(t *testing.T) {
	checker := &MockChecker{}
	mockLogger := NewMockLogger()

	w := NewWorker(context.Background(), checker, nil, mockLogger, 0)
	w.Start()

	assert.Equal(t, 0, checker.Runs())
	assert.Contains(t, mockLogger.infos, "Periodic price checks disabled")
}
