package hub

// Conn is one physical client socket as seen by the hub.
// Send must not block; implementations queue outbound frames.
type Conn interface {
	ID() string
	Send(data []byte) error
	Ping() error
	IsOpen() bool
	Close() error
}
