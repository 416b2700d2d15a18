package stream

// ConnectionState tracks the receiver's connection lifecycle. It is owned by
// the Receiver and exposed for diagnostics; the default experience is silent
// degrade-and-retry.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Streaming
	Reconnecting
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Streaming:
		return "streaming"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
