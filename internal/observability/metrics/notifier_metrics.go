package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the static labels stamped onto every notifier metric.
type Config struct {
	ServiceName string
	Environment string
}

const (
	RunResultOK          = "ok"
	RunResultError       = "error"
	RunResultLockSkipped = "lock_skipped"
	RunResultEmpty       = "empty"
)

const (
	CustomerResultNotified = "notified"
	CustomerResultSkipped  = "skipped"
	CustomerResultFailed   = "failed"
)

const (
	InvoiceSkipReasonDuplicate      = "duplicate"
	InvoiceSkipReasonNoCustomer     = "no_customer"
	InvoiceSkipReasonBelowThreshold = "below_threshold"
)

const (
	SenderFallbackNoRep      = "no_rep"
	SenderFallbackNoRepEmail = "no_rep_email"
	SenderFallbackLookupErr  = "lookup_error"
)

// NotifierMetrics captures dunning run health signals.
type NotifierMetrics struct {
	runs            *prometheus.CounterVec
	runDuration     prometheus.Observer
	customers       *prometheus.CounterVec
	emailsSent      prometheus.Counter
	emailsFailed    prometheus.Counter
	invoicesSkipped *prometheus.CounterVec
	senderFallbacks *prometheus.CounterVec
}

var (
	notifierMetricsOnce sync.Once
	notifierMetrics     *NotifierMetrics
)

// Notifier returns the singleton notifier metrics registry.
func Notifier() *NotifierMetrics {
	return NotifierWithConfig(Config{})
}

// NotifierWithConfig returns the singleton notifier metrics registry using config labels.
func NotifierWithConfig(cfg Config) *NotifierMetrics {
	notifierMetricsOnce.Do(func() {
		notifierMetrics = newNotifierMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return notifierMetrics
}

// ResetNotifierMetricsForTest resets the notifier metrics singleton for tests.
func ResetNotifierMetricsForTest() {
	notifierMetricsOnce = sync.Once{}
	notifierMetrics = nil
}

func newNotifierMetrics(registerer prometheus.Registerer, cfg Config) *NotifierMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "dunning"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_notifier_runs_total",
		Help:        "Notifier runs by outcome.",
		ConstLabels: constLabels,
	}, []string{"result"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "dunning_notifier_run_duration_seconds",
		Help:        "Wall time of a full notifier run.",
		ConstLabels: constLabels,
		Buckets:     prometheus.DefBuckets,
	})
	customers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_notifier_customers_total",
		Help:        "Customer groups processed by outcome.",
		ConstLabels: constLabels,
	}, []string{"result"})
	emailsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "dunning_notifier_emails_sent_total",
		Help:        "Overdue notification emails delivered to the provider.",
		ConstLabels: constLabels,
	})
	emailsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "dunning_notifier_emails_failed_total",
		Help:        "Overdue notification emails the provider rejected.",
		ConstLabels: constLabels,
	})
	invoicesSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_notifier_invoices_skipped_total",
		Help:        "Invoice rows dropped during grouping by reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	senderFallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "dunning_notifier_sender_fallbacks_total",
		Help:        "Sender resolutions that fell back to the administrator identity.",
		ConstLabels: constLabels,
	}, []string{"reason"})

	for _, collector := range []prometheus.Collector{
		runs, runDuration, customers, emailsSent, emailsFailed, invoicesSkipped, senderFallbacks,
	} {
		registerer.MustRegister(collector)
	}

	return &NotifierMetrics{
		runs:            runs,
		runDuration:     runDuration,
		customers:       customers,
		emailsSent:      emailsSent,
		emailsFailed:    emailsFailed,
		invoicesSkipped: invoicesSkipped,
		senderFallbacks: senderFallbacks,
	}
}

func (m *NotifierMetrics) IncRun(result string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
}

func (m *NotifierMetrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

func (m *NotifierMetrics) IncCustomer(result string) {
	if m == nil {
		return
	}
	m.customers.WithLabelValues(result).Inc()
}

func (m *NotifierMetrics) IncEmailSent() {
	if m == nil {
		return
	}
	m.emailsSent.Inc()
}

func (m *NotifierMetrics) IncEmailFailed() {
	if m == nil {
		return
	}
	m.emailsFailed.Inc()
}

func (m *NotifierMetrics) IncInvoiceSkipped(reason string) {
	if m == nil {
		return
	}
	m.invoicesSkipped.WithLabelValues(reason).Inc()
}

func (m *NotifierMetrics) IncSenderFallback(reason string) {
	if m == nil {
		return
	}
	m.senderFallbacks.WithLabelValues(reason).Inc()
}
