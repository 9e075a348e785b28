package utils

import (
	"sync"
	"time"
)

// Metrics holds the in-process application metrics
type Metrics struct {
	mu sync.RWMutex

	// Request metrics
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Payment metrics
	PaymentsCreated      int64
	InstallmentsPaid     int64
	PaymentsCompleted    int64
	OverduePaymentsSwept int64
	AlertsEmitted        int64
	LastPaymentOperation time.Time

	// Error metrics
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics returns the metrics singleton
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ErrorTypes: make(map[string]int64),
		}
	})
	return metrics
}

// RecordRequest records request metrics
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordPaymentOperation records metrics for one payment operation
func (m *Metrics) RecordPaymentOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastPaymentOperation = time.Now()

	if err != nil {
		m.recordErrorLocked(err)
		return
	}

	switch operation {
	case "create":
		m.PaymentsCreated++
	case "pay_installment":
		m.InstallmentsPaid++
	case "complete":
		m.PaymentsCompleted++
	case "sweep":
		m.OverduePaymentsSwept++
	case "alert":
		m.AlertsEmitted++
	}
}

// RecordError records error metrics
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}
	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot returns a snapshot of the current metrics
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":         m.TotalRequests,
		"failed_requests":        m.FailedRequests,
		"average_latency":        m.AverageLatency.String(),
		"payments_created":       m.PaymentsCreated,
		"installments_paid":      m.InstallmentsPaid,
		"payments_completed":     m.PaymentsCompleted,
		"overdue_payments_swept": m.OverduePaymentsSwept,
		"alerts_emitted":         m.AlertsEmitted,
		"error_count":            m.ErrorCount,
		"last_error_time":        m.LastErrorTime,
		"error_types":            m.ErrorTypes,
	}
}

// ResetMetrics resets all metrics
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.PaymentsCreated = 0
	m.InstallmentsPaid = 0
	m.PaymentsCompleted = 0
	m.OverduePaymentsSwept = 0
	m.AlertsEmitted = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
