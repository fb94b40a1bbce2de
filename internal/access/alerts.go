package access

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
)

const alertDispatchTimeout = 10 * time.Second

// Alert represents one operational alert raised by the access layer
type Alert struct {
	ID        string                 `json:"id"`
	Severity  string                 `json:"severity"`
	Component string                 `json:"component"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AlertChannel delivers alerts to one destination
type AlertChannel interface {
	SendAlert(ctx context.Context, alert *Alert) error
	ChannelType() string
	IsEnabled() bool
}

// AlertManager fans alerts out to every registered channel from a
// background worker. Raising an alert never blocks the caller; when the
// queue is full the alert is logged and dropped, since every alert is
// mirrored to the structured log anyway.
type AlertManager struct {
	channels   map[string]AlertChannel
	alertQueue chan *Alert
	stopChan   chan struct{}
	wg         sync.WaitGroup
	logger     *logger.Logger
	metrics    *monitoring.MetricsCollector

	mu      sync.Mutex
	started bool
}

// NewAlertManager creates an alert manager with the given queue capacity
func NewAlertManager(bufferSize int, log *logger.Logger, metrics *monitoring.MetricsCollector) *AlertManager {
	if bufferSize <= 0 {
		bufferSize = access.DefaultAlertBufferSize
	}

	return &AlertManager{
		channels:   make(map[string]AlertChannel),
		alertQueue: make(chan *Alert, bufferSize),
		stopChan:   make(chan struct{}),
		logger:     log,
		metrics:    metrics,
	}
}

// RegisterChannel adds a delivery channel. Channels registered after Start
// receive subsequent alerts.
func (am *AlertManager) RegisterChannel(channel AlertChannel) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.channels[channel.ChannelType()] = channel
}

// Start launches the dispatch worker
func (am *AlertManager) Start() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	if am.started {
		return fmt.Errorf("alert manager already started")
	}
	am.started = true

	am.wg.Add(1)
	go am.processAlerts()

	am.logger.Info("Alert manager started with", len(am.channels), "channels")
	return nil
}

// Stop shuts the dispatch worker down after draining queued alerts
func (am *AlertManager) Stop() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	if !am.started {
		return nil
	}
	am.started = false

	close(am.stopChan)
	am.wg.Wait()

	am.logger.Info("Alert manager stopped")
	return nil
}

// Notify raises an alert. The alert is always written to the structured
// log; channel delivery happens asynchronously.
func (am *AlertManager) Notify(ctx context.Context, severity, component, message string, details map[string]interface{}) {
	alert := &Alert{
		ID:        uuid.New().String(),
		Severity:  severity,
		Component: component,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	am.logAlert(alert)

	select {
	case am.alertQueue <- alert:
	default:
		am.logger.Warn("Alert queue full, alert delivered to log only:", alert.ID)
		if am.metrics != nil {
			am.metrics.RecordSystemError("alert_queue_full", "alerts")
		}
	}
}

func (am *AlertManager) processAlerts() {
	defer am.wg.Done()

	for {
		select {
		case alert := <-am.alertQueue:
			am.dispatch(alert)
		case <-am.stopChan:
			for {
				select {
				case alert := <-am.alertQueue:
					am.dispatch(alert)
				default:
					return
				}
			}
		}
	}
}

func (am *AlertManager) dispatch(alert *Alert) {
	am.mu.Lock()
	channels := make([]AlertChannel, 0, len(am.channels))
	for _, channel := range am.channels {
		channels = append(channels, channel)
	}
	am.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), alertDispatchTimeout)
	defer cancel()

	for _, channel := range channels {
		if !channel.IsEnabled() {
			continue
		}

		if err := channel.SendAlert(ctx, alert); err != nil {
			am.logger.Error("Alert delivery failed on channel", channel.ChannelType(), ":", err)
			if am.metrics != nil {
				am.metrics.RecordSystemError("alert_delivery", "alerts")
			}
			continue
		}

		if am.metrics != nil {
			am.metrics.RecordAlertSent(alert.Severity, channel.ChannelType())
		}
	}
}

func (am *AlertManager) logAlert(alert *Alert) {
	entry := am.logger.WithFields(map[string]interface{}{
		"alert_id":  alert.ID,
		"severity":  alert.Severity,
		"component": alert.Component,
		"details":   alert.Details,
	})

	switch alert.Severity {
	case "critical", "error":
		entry.Error(alert.Message)
	case "warning":
		entry.Warn(alert.Message)
	default:
		entry.Info(alert.Message)
	}
}

// WebhookChannel posts alerts as JSON to an HTTP endpoint
type WebhookChannel struct {
	url        string
	httpClient *http.Client
	maxRetries int
	enabled    bool
}

// NewWebhookChannel creates a webhook alert channel
func NewWebhookChannel(url string, enabled bool) *WebhookChannel {
	return &WebhookChannel{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		enabled:    enabled,
	}
}

// SendAlert posts the alert, retrying transient failures with backoff
func (wc *WebhookChannel) SendAlert(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < wc.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := wc.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", wc.maxRetries, lastErr)
}

// ChannelType returns the channel identifier
func (wc *WebhookChannel) ChannelType() string {
	return "webhook"
}

// IsEnabled reports whether the channel should receive alerts
func (wc *WebhookChannel) IsEnabled() bool {
	return wc.enabled
}

// KafkaChannel publishes alerts to a Kafka topic for downstream consumers
type KafkaChannel struct {
	writer  *kafka.Writer
	enabled bool
}

// NewKafkaChannel creates a Kafka alert channel publishing to the given
// topic on the given brokers
func NewKafkaChannel(brokers []string, topic string, enabled bool) *KafkaChannel {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &KafkaChannel{
		writer:  writer,
		enabled: enabled,
	}
}

// SendAlert publishes the alert keyed by component so alerts for the same
// subsystem land in the same partition
func (kc *KafkaChannel) SendAlert(ctx context.Context, alert *Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	err = kc.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(alert.Component),
		Value: payload,
		Time:  alert.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// ChannelType returns the channel identifier
func (kc *KafkaChannel) ChannelType() string {
	return "kafka"
}

// IsEnabled reports whether the channel should receive alerts
func (kc *KafkaChannel) IsEnabled() bool {
	return kc.enabled
}

// Close releases the underlying Kafka writer
func (kc *KafkaChannel) Close() error {
	return kc.writer.Close()
}
