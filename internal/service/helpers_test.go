package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

// failingCommitTx fails at COMMIT, as a serializable transaction does on conflict.
type failingCommitTx struct {
	pgx.Tx
	err error
}

func (m *failingCommitTx) Rollback(_ context.Context) error { return nil }
func (m *failingCommitTx) Commit(_ context.Context) error   { return m.err }

// recordingMetrics counts observations by label.
type recordingMetrics struct {
	mu          sync.Mutex
	claims      map[string]int
	settlements map[string]int
	retries     map[string]int
	webhooks    map[string]int
	abandoned   int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		claims:      map[string]int{},
		settlements: map[string]int{},
		retries:     map[string]int{},
		webhooks:    map[string]int{},
	}
}

func (m *recordingMetrics) ObserveClaim(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claims[result]++
}

func (m *recordingMetrics) ObserveSettlement(_, _, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settlements[outcome]++
}

func (m *recordingMetrics) ObserveLedgerRetry(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[operation]++
}

func (m *recordingMetrics) ObserveCallerAbandoned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned++
}

func (m *recordingMetrics) ObserveWebhook(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks[result]++
}

func (m *recordingMetrics) count(set map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return set[key]
}
