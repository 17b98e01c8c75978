// Package monitoring tracks workflow execution outcomes, evaluates
// per-business alert thresholds and dispatches alerts to notification sinks.
package monitoring

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

// Threshold metric names recognized in MonitoringConfig.AlertThresholds.
// Response time thresholds are in seconds.
const (
	MetricConsecutiveFailures = "consecutive_failures"
	MetricFailureRate         = "failure_rate"
	MetricResponseTime        = "response_time"
)

// failureRateWindow is the number of recent executions the failure rate is
// computed over; below minSamples no rate alert fires.
const (
	failureRateWindow = 20
	minSamples        = 5
)

type workflowStats struct {
	consecutiveFailures int
	recent              []bool // true = failed, newest last
	alerting            map[string]bool
}

// Monitor records execution outcomes. Record never returns an error: a
// monitoring hiccup must not disturb the execution result already computed.
type Monitor struct {
	logger      *slog.Logger
	sinks       []protocol.NotificationSink
	alertClient *http.Client

	executionsTotal   *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	alertsTotal       *prometheus.CounterVec

	mu            sync.Mutex
	thresholds    map[string]map[string]float64        // businessID -> metric -> threshold
	businessSinks map[string]protocol.NotificationSink // businessID -> configured webhook sink
	stats         map[string]*workflowStats            // businessID:workflowID
}

func NewMonitor(registerer prometheus.Registerer, logger *slog.Logger, sinks ...protocol.NotificationSink) *Monitor {
	m := &Monitor{
		logger:      logger.With("module", "monitoring"),
		sinks:       sinks,
		alertClient: &http.Client{Timeout: notifyTimeout},
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadline_executions_total",
			Help: "Workflow executions by terminal status.",
		}, []string{"business_id", "workflow_id", "status"}),
		executionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threadline_execution_duration_seconds",
			Help:    "Workflow execution wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"business_id", "workflow_id"}),
		alertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "threadline_alerts_total",
			Help: "Alerts raised by threshold breaches.",
		}, []string{"business_id", "metric"}),
		thresholds:    make(map[string]map[string]float64),
		businessSinks: make(map[string]protocol.NotificationSink),
		stats:         make(map[string]*workflowStats),
	}

	if registerer != nil {
		registerer.MustRegister(m.executionsTotal, m.executionDuration, m.alertsTotal)
	}

	return m
}

// Configure sets the alert thresholds and notification endpoint for a
// business. Idempotent; calling it again replaces the previous configuration
// and resets nothing else.
func (m *Monitor) Configure(businessID string, config models.MonitoringConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	thresholds := make(map[string]float64, len(config.AlertThresholds))
	for metric, value := range config.AlertThresholds {
		thresholds[metric] = value
	}

	m.thresholds[businessID] = thresholds

	if config.NotificationURL != "" {
		m.businessSinks[businessID] = NewWebhookSink(config.NotificationURL, m.alertClient)
	} else {
		delete(m.businessSinks, businessID)
	}
}

// Record observes a finished execution, updates metrics and raises alerts for
// any newly breached threshold.
func (m *Monitor) Record(ctx context.Context, execution *models.WorkflowExecution) {
	if execution == nil || !execution.Status.IsTerminal() {
		return
	}

	failed := execution.Status == models.ExecutionStatusFailed

	m.executionsTotal.WithLabelValues(execution.BusinessID, execution.WorkflowID, string(execution.Status)).Inc()

	duration := -1.0
	if execution.EndTime != nil {
		duration = execution.EndTime.Sub(execution.StartTime).Seconds()
		m.executionDuration.
			WithLabelValues(execution.BusinessID, execution.WorkflowID).
			Observe(duration)
	}

	alerts := m.observe(execution, failed, duration)

	for _, alert := range alerts {
		m.alertsTotal.WithLabelValues(alert.BusinessID, alert.Metric).Inc()
		m.dispatch(ctx, alert)
	}
}

// observe updates the sliding stats under the lock and returns the alerts to
// raise. An alert fires once per breach episode and re-arms when the metric
// drops back under its threshold.
func (m *Monitor) observe(execution *models.WorkflowExecution, failed bool, duration float64) []protocol.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := execution.BusinessID + ":" + execution.WorkflowID

	stats, ok := m.stats[key]
	if !ok {
		stats = &workflowStats{alerting: make(map[string]bool)}
		m.stats[key] = stats
	}

	if failed {
		stats.consecutiveFailures++
	} else {
		stats.consecutiveFailures = 0
	}

	stats.recent = append(stats.recent, failed)
	if len(stats.recent) > failureRateWindow {
		stats.recent = stats.recent[len(stats.recent)-failureRateWindow:]
	}

	thresholds := m.thresholds[execution.BusinessID]
	if len(thresholds) == 0 {
		return nil
	}

	var alerts []protocol.Alert

	if threshold, ok := thresholds[MetricConsecutiveFailures]; ok {
		value := float64(stats.consecutiveFailures)
		alerts = m.evaluate(alerts, stats, execution, MetricConsecutiveFailures, value, threshold, value >= threshold)
	}

	if threshold, ok := thresholds[MetricFailureRate]; ok && len(stats.recent) >= minSamples {
		failures := 0

		for _, f := range stats.recent {
			if f {
				failures++
			}
		}

		rate := float64(failures) / float64(len(stats.recent))
		alerts = m.evaluate(alerts, stats, execution, MetricFailureRate, rate, threshold, rate >= threshold)
	}

	if threshold, ok := thresholds[MetricResponseTime]; ok && duration >= 0 {
		alerts = m.evaluate(alerts, stats, execution, MetricResponseTime, duration, threshold, duration >= threshold)
	}

	return alerts
}

func (m *Monitor) evaluate(alerts []protocol.Alert, stats *workflowStats, execution *models.WorkflowExecution, metric string, value, threshold float64, breached bool) []protocol.Alert {
	if !breached {
		stats.alerting[metric] = false

		return alerts
	}

	if stats.alerting[metric] {
		return alerts
	}

	stats.alerting[metric] = true

	return append(alerts, protocol.Alert{
		BusinessID: execution.BusinessID,
		WorkflowID: execution.WorkflowID,
		Metric:     metric,
		Value:      value,
		Threshold:  threshold,
		RaisedAt:   time.Now().UTC(),
		Details: map[string]any{
			"execution_id": execution.ID,
		},
	})
}

// dispatch fans the alert out to the static sinks plus the business's
// configured notification endpoint, if any.
func (m *Monitor) dispatch(ctx context.Context, alert protocol.Alert) {
	m.mu.Lock()
	sinks := make([]protocol.NotificationSink, 0, len(m.sinks)+1)
	sinks = append(sinks, m.sinks...)

	if sink, ok := m.businessSinks[alert.BusinessID]; ok {
		sinks = append(sinks, sink)
	}
	m.mu.Unlock()

	for _, sink := range sinks {
		err := sink.Notify(ctx, alert)
		if err != nil {
			m.logger.WarnContext(ctx, "Notification sink failed",
				"business_id", alert.BusinessID,
				"metric", alert.Metric,
				"error", err,
			)
		}
	}
}
