package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config labels all metering metrics with service identity.
type Config struct {
	ServiceName string
	Environment string
}

// MeteringMetrics tracks ledger and session outcomes.
type MeteringMetrics struct {
	tokenDebits     *prometheus.CounterVec
	tokenCredits    *prometheus.CounterVec
	sessionsStarted *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
}

var (
	meteringMetricsOnce sync.Once
	meteringMetrics     *MeteringMetrics
)

// Metering returns the process-wide metering metrics.
func Metering() *MeteringMetrics {
	return MeteringWithConfig(Config{})
}

// MeteringWithConfig builds the metering metrics once with the given labels.
func MeteringWithConfig(cfg Config) *MeteringMetrics {
	meteringMetricsOnce.Do(func() {
		meteringMetrics = newMeteringMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return meteringMetrics
}

// ResetMeteringMetricsForTest clears the singleton between test registries.
func ResetMeteringMetricsForTest() {
	meteringMetricsOnce = sync.Once{}
	meteringMetrics = nil
}

func newMeteringMetrics(registerer prometheus.Registerer, cfg Config) *MeteringMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "voxora"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	tokenDebits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "voxora_token_debits_total",
			Help:        "Total debit attempts against token ledgers.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | insufficient_balance | failed
	)

	tokenCredits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "voxora_token_credits_total",
			Help:        "Total credits applied to token ledgers.",
			ConstLabels: constLabels,
		},
		[]string{"type"}, // purchase | bonus
	)

	sessionsStarted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "voxora_sessions_started_total",
			Help:        "Total metered sessions opened.",
			ConstLabels: constLabels,
		},
		[]string{"service_type"},
	)

	sessionsClosed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "voxora_sessions_closed_total",
			Help:        "Total metered sessions closed by terminal status and trigger.",
			ConstLabels: constLabels,
		},
		[]string{"status", "trigger"}, // trigger: client | reaper | oracle
	)

	sessionDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "voxora_session_duration_seconds",
			Help: "Billed duration of closed sessions.",
			Buckets: []float64{
				5,
				15,
				30,
				60,
				300,
				900,
				1800,
				3600,
				7200, // max plausible session bound
			},
			ConstLabels: constLabels,
		},
		[]string{"service_type"},
	)

	activeSessions := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "voxora_sessions_active",
			Help:        "Sessions currently open.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		tokenDebits,
		tokenCredits,
		sessionsStarted,
		sessionsClosed,
		sessionDuration,
		activeSessions,
	)

	return &MeteringMetrics{
		tokenDebits:     tokenDebits,
		tokenCredits:    tokenCredits,
		sessionsStarted: sessionsStarted,
		sessionsClosed:  sessionsClosed,
		sessionDuration: sessionDuration,
		activeSessions:  activeSessions,
	}
}

func (m *MeteringMetrics) IncDebit(result string) {
	if m == nil {
		return
	}
	m.tokenDebits.WithLabelValues(result).Inc()
}

func (m *MeteringMetrics) IncCredit(creditType string) {
	if m == nil {
		return
	}
	m.tokenCredits.WithLabelValues(creditType).Inc()
}

func (m *MeteringMetrics) IncSessionStarted(serviceType string) {
	if m == nil {
		return
	}
	m.sessionsStarted.WithLabelValues(serviceType).Inc()
	m.activeSessions.Inc()
}

func (m *MeteringMetrics) IncSessionClosed(status, trigger string) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(status, trigger).Inc()
	m.activeSessions.Dec()
}

func (m *MeteringMetrics) ObserveSessionDuration(serviceType string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sessionDuration.WithLabelValues(serviceType).Observe(seconds)
}
