package workflow

import "mediaflow/internal/queue"

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	Workers   int
	LastError string
	LastItem  *queue.Item
	Processed int64
	Failed    int64
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := StatusSummary{
		Running:   m.running,
		Workers:   m.workers,
		Processed: m.processed,
		Failed:    m.failed,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastItem != nil {
		item := *m.lastItem
		summary.LastItem = &item
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastItem(item queue.Item) {
	m.mu.Lock()
	m.lastItem = &item
	m.mu.Unlock()
}

func (m *Manager) recordFailure(err error) {
	m.mu.Lock()
	m.failed++
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) recordSuccess() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}
