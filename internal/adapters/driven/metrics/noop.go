package metrics

import "github.com/porscheinformatik/pnet-idp-client-go/internal/core/ports"

// NoopMetricsRecorder discards every recording. Used when metrics are
// disabled and as the default in tests.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a no-op recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

func (n *NoopMetricsRecorder) RecordAuthnRequest(string)                      {}
func (n *NoopMetricsRecorder) RecordResponseValidation(string, bool, string)  {}
func (n *NoopMetricsRecorder) RecordCredentialReload(bool, int)               {}
func (n *NoopMetricsRecorder) RecordMetadataRefresh(string, bool)             {}

var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)
