package ports

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusMetricsRecorder for
// production, NoopMetricsRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordAuthnRequest records an issued authentication request.
	RecordAuthnRequest(registrationID string)

	// RecordResponseValidation records the outcome of one response
	// validation run. check names the failing check, or is empty on
	// success.
	RecordResponseValidation(registrationID string, success bool, check string)

	// RecordCredentialReload records a credential reload attempt.
	RecordCredentialReload(success bool, credentialCount int)

	// RecordMetadataRefresh records a metadata refresh attempt.
	RecordMetadataRefresh(registrationID string, success bool)
}
