package registry

// Sink is the exclusive write handle to one user's outbound connection.
// The underlying Connection Loop owns the actual socket write; Sink only
// hands frames to that loop's outbound channel, which serializes them so
// broadcasts and unicasts to the same user never interleave.
type Sink struct {
	ch chan []byte
}

// NewSink wraps a connection's outbound channel.
func NewSink(ch chan []byte) *Sink {
	return &Sink{ch: ch}
}

// Write enqueues a text frame for delivery rather than blocking the
// caller. It reports delivered=false if the connection's outbound buffer
// was full and the frame was dropped, so the caller can log it.
func (s *Sink) Write(payload []byte) (delivered bool) {
	select {
	case s.ch <- payload:
		return true
	default:
		return false
	}
}

// User is a logged-in client connection.
type User struct {
	ID   string
	Name string
	Addr string
	Sink *Sink
}
