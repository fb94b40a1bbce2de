package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/interfaces"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
)

const auditDeliverTimeout = 5 * time.Second

// AuditMonitor moves audit entries from the request path to the persistent
// sink without ever blocking a read. Entries go through a buffered queue; a
// saturated queue diverts delivery to a dedicated goroutine instead of
// dropping the entry or stalling the caller.
type AuditMonitor struct {
	sink       access.AuditSink
	alerts     interfaces.AlertNotifier
	logger     *logger.Logger
	metrics    *monitoring.MetricsCollector
	retryDelay time.Duration

	entryQueue chan *access.AuditEntry
	stopChan   chan struct{}
	wg         sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewAuditMonitor creates an audit monitor writing to the given sink. The
// alert notifier and metrics collector are optional.
func NewAuditMonitor(sink access.AuditSink, alerts interfaces.AlertNotifier, bufferSize int, retryDelay time.Duration, log *logger.Logger, metrics *monitoring.MetricsCollector) *AuditMonitor {
	if bufferSize <= 0 {
		bufferSize = access.DefaultAuditBufferSize
	}
	if retryDelay <= 0 {
		retryDelay = time.Duration(access.DefaultAuditRetryDelayMs) * time.Millisecond
	}

	return &AuditMonitor{
		sink:       sink,
		alerts:     alerts,
		logger:     log,
		metrics:    metrics,
		retryDelay: retryDelay,
		entryQueue: make(chan *access.AuditEntry, bufferSize),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the background delivery worker
func (m *AuditMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("audit monitor already started")
	}
	m.started = true

	m.wg.Add(1)
	go m.run()

	m.logger.Info("Audit monitor started")
	return nil
}

// Stop drains the queue and shuts the worker down
func (m *AuditMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	close(m.stopChan)
	m.wg.Wait()

	m.logger.Info("Audit monitor stopped")
	return nil
}

// Record enqueues an entry for asynchronous delivery. It returns
// immediately: when the queue is saturated, delivery happens on a separate
// goroutine that completes independently of this monitor's lifecycle.
func (m *AuditMonitor) Record(entry *access.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	select {
	case m.entryQueue <- entry:
	default:
		m.logger.Warn("Audit queue saturated, delivering entry out of band:", entry.ID)
		go m.deliver(entry)
	}
}

func (m *AuditMonitor) run() {
	defer m.wg.Done()

	for {
		select {
		case entry := <-m.entryQueue:
			m.deliver(entry)
		case <-m.stopChan:
			m.drainQueue()
			return
		}
	}
}

func (m *AuditMonitor) drainQueue() {
	for {
		select {
		case entry := <-m.entryQueue:
			m.deliver(entry)
		default:
			return
		}
	}
}

// deliver writes one entry to the sink, retrying once after a short delay.
// A second failure escalates to the alert channel; the entry's payload is
// preserved in the alert details so it can be replayed.
func (m *AuditMonitor) deliver(entry *access.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), auditDeliverTimeout)
	defer cancel()

	firstErr := m.sink.WriteEntry(ctx, entry)
	if firstErr == nil {
		m.recordOutcome(entry.Action, true)
		return
	}

	if m.metrics != nil {
		m.metrics.RecordAuditRetry()
	}
	m.logger.Warn("Audit write failed, retrying:", firstErr)
	time.Sleep(m.retryDelay)

	if err := m.sink.WriteEntry(ctx, entry); err != nil {
		m.recordOutcome(entry.Action, false)
		m.logger.Error("Audit write failed after retry:", err)
		m.escalate(ctx, entry, err)
		return
	}

	m.recordOutcome(entry.Action, true)
}

func (m *AuditMonitor) escalate(ctx context.Context, entry *access.AuditEntry, err error) {
	if m.alerts == nil {
		return
	}
	m.alerts.Notify(ctx, "critical", "audit", "Audit entry could not be persisted", map[string]interface{}{
		"entry_id":    entry.ID,
		"actor_id":    entry.ActorID,
		"actor_role":  string(entry.ActorRole),
		"action":      entry.Action,
		"resource":    entry.Resource,
		"target_role": string(entry.TargetRole),
		"timestamp":   entry.Timestamp.Format(time.RFC3339),
		"error":       err.Error(),
	})
}

func (m *AuditMonitor) recordOutcome(action string, success bool) {
	if m.metrics != nil {
		m.metrics.RecordAuditEvent(action, success)
	}
}
