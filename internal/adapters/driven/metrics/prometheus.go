// Package metrics provides MetricsRecorder adapters: a Prometheus
// recorder for production and a no-op recorder for disabled metrics and
// tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	authnRequestsTotal       *prometheus.CounterVec
	responseValidationsTotal *prometheus.CounterVec
	credentialReloadsTotal   *prometheus.CounterVec
	activeCredentials        prometheus.Gauge
	metadataRefreshTotal     *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder creates a recorder registered with the
// default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a recorder with a
// custom registry. Use this for testing.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	authnRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pnet_idp_authn_requests_total",
		Help: "Total issued SAML authentication requests",
	}, []string{"registration_id"})

	responseValidationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pnet_idp_response_validations_total",
		Help: "Total SAML response validation runs",
	}, []string{"registration_id", "result", "check"})

	credentialReloadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pnet_idp_credential_reloads_total",
		Help: "Total credential reload attempts",
	}, []string{"result"})

	activeCredentials := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pnet_idp_active_credentials",
		Help: "Current number of active credentials",
	})

	metadataRefreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pnet_idp_metadata_refresh_total",
		Help: "Total IdP metadata refresh attempts",
	}, []string{"registration_id", "result"})

	reg.MustRegister(
		authnRequestsTotal,
		responseValidationsTotal,
		credentialReloadsTotal,
		activeCredentials,
		metadataRefreshTotal,
	)

	return &PrometheusMetricsRecorder{
		authnRequestsTotal:       authnRequestsTotal,
		responseValidationsTotal: responseValidationsTotal,
		credentialReloadsTotal:   credentialReloadsTotal,
		activeCredentials:        activeCredentials,
		metadataRefreshTotal:     metadataRefreshTotal,
	}
}

// RecordAuthnRequest records an issued authentication request.
func (p *PrometheusMetricsRecorder) RecordAuthnRequest(registrationID string) {
	p.authnRequestsTotal.WithLabelValues(registrationID).Inc()
}

// RecordResponseValidation records a response validation run. check is
// the failing check name, empty on success.
func (p *PrometheusMetricsRecorder) RecordResponseValidation(registrationID string, success bool, check string) {
	result := "failure"
	if success {
		result = "success"
	}
	p.responseValidationsTotal.WithLabelValues(registrationID, result, check).Inc()
}

// RecordCredentialReload records a credential reload attempt.
func (p *PrometheusMetricsRecorder) RecordCredentialReload(success bool, credentialCount int) {
	result := "failure"
	if success {
		result = "success"
		p.activeCredentials.Set(float64(credentialCount))
	}
	p.credentialReloadsTotal.WithLabelValues(result).Inc()
}

// RecordMetadataRefresh records an IdP metadata refresh attempt.
func (p *PrometheusMetricsRecorder) RecordMetadataRefresh(registrationID string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	p.metadataRefreshTotal.WithLabelValues(registrationID, result).Inc()
}

// Ensure PrometheusMetricsRecorder implements the port interface.
var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
