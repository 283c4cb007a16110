package publisher

// Publisher represents a service for publishing scraped listings
type Publisher interface {
	// Publish publishes a message keyed by listing ID
	Publish(key string, message []byte) error

	// Close closes the publisher connection
	Close() error
}
