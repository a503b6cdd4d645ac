package outbox

// Outbox row persisted inside the same DB transaction as state changes.
// The worker relay reads pending rows and publishes them to the event bus.
type Message struct {
	ID         string
	EventType  string
	Payload    []byte
	Status     string // pending, published, failed
	RetryCount int
}
