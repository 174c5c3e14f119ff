package memo

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is safe for concurrent use and intended as the default when
// no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                {}
func (NoopMetrics) Miss()               {}
func (NoopMetrics) Failure()            {}
func (NoopMetrics) Expire(ExpireReason) {}
func (NoopMetrics) Resize(int)          {}

var _ Metrics = NoopMetrics{}
