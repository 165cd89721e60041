package giftcert

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	issuedTotal      *prometheus.CounterVec
	issuedValue      *prometheus.CounterVec
	redemptionsTotal *prometheus.CounterVec
	redeemedValue    *prometheus.CounterVec
	validationsTotal *prometheus.CounterVec
	cancellations    prometheus.Counter
	expirations      prometheus.Counter
	casConflicts     prometheus.Counter
	auditFailures    prometheus.Counter
	publishFailures  prometheus.Counter
	codeGenExhausted prometheus.Counter
}

// NewMetrics registers the engine collectors with promRegistry.
func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	f := promauto.With(promRegistry)
	return &Metrics{
		issuedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcert_issued_total",
			Help: "certificates issued",
		}, []string{"currency"}),
		issuedValue: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcert_issued_value_total",
			Help: "face value of certificates issued",
		}, []string{"currency"}),
		redemptionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcert_redemptions_total",
			Help: "redemption attempts by result",
		}, []string{"result"}),
		redeemedValue: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcert_redeemed_value_total",
			Help: "value redeemed from certificates",
		}, []string{"currency"}),
		validationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftcert_validations_total",
			Help: "validations by result",
		}, []string{"result"}),
		cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "giftcert_cancellations_total",
			Help: "certificates cancelled",
		}),
		expirations: f.NewCounter(prometheus.CounterOpts{
			Name: "giftcert_expirations_total",
			Help: "certificates moved to expired",
		}),
		casConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "giftcert_cas_conflicts_total",
			Help: "updates rejected because the certificate version changed",
		}),
		auditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "giftcert_audit_write_failures_total",
			Help: "audit entries that could not be written",
		}),
		publishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "giftcert_event_publish_failures_total",
			Help: "events the publisher rejected",
		}),
		codeGenExhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "giftcert_code_generation_exhausted_total",
			Help: "issuances that ran out of code generation attempts",
		}),
	}
}

func (m *Metrics) issued(currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.issuedTotal.WithLabelValues(currency).Inc()
	m.issuedValue.WithLabelValues(currency).Add(amount.InexactFloat64())
}

func (m *Metrics) redemption(result string, currency string, amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.redemptionsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		m.redeemedValue.WithLabelValues(currency).Add(amount.InexactFloat64())
	}
}

func (m *Metrics) validation(result string) {
	if m == nil {
		return
	}
	m.validationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) cancelled() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *Metrics) expired() {
	if m == nil {
		return
	}
	m.expirations.Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.casConflicts.Inc()
}

func (m *Metrics) auditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *Metrics) publishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) generationExhausted() {
	if m == nil {
		return
	}
	m.codeGenExhausted.Inc()
}
