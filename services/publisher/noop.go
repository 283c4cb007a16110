package publisher

// NoopPublisher implements Publisher without publishing anywhere.
// It is the default when no Redis address is configured.
type NoopPublisher struct{}

// NewNoopPublisher creates a new no-op publisher
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

// Publish discards the message
func (p *NoopPublisher) Publish(key string, message []byte) error {
	return nil
}

// Close does nothing
func (p *NoopPublisher) Close() error {
	return nil
}
