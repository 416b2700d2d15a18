package stream

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-handtrack/pipeline/pkg/codec"
	"github.com/open-handtrack/pipeline/pkg/config"
	customlog "github.com/open-handtrack/pipeline/pkg/log"
)

// ErrAlreadyConnected is returned when Connect is called on a running receiver.
var ErrAlreadyConnected = errors.New("receiver already connected")

// RetryPolicy bounds reconnection: MaxAttempts consecutive failed dials with
// Delay between them before the receiver gives up and surfaces Failed.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// ReceiverStats is a snapshot of receiver counters for diagnostics.
type ReceiverStats struct {
	State           string `json:"state"`
	FramesReceived  uint64 `json:"frames_received"`
	DecodeErrors    uint64 `json:"decode_errors"`
	LastFrameUnixNs int64  `json:"last_frame_unix_ns"`
}

// Receiver maintains a connection to the stream server, decodes incoming
// frames, and publishes only the latest one into the shared slot. All
// blocking I/O (dials, reads, reconnect backoff) happens on the receiver's
// own goroutine; consumers only ever touch the slot.
type Receiver struct {
	addr        string
	dialTimeout time.Duration
	policy      RetryPolicy
	slot        *LatestSlot
	logger      customlog.Logger

	state atomic.Int32

	mu      sync.Mutex
	conn    net.Conn
	done    chan struct{}
	running bool
	wg      sync.WaitGroup

	framesReceived atomic.Uint64
	decodeErrors   atomic.Uint64
	lastFrameNs    atomic.Int64
}

// NewReceiver creates a receiver publishing decoded frames into slot.
func NewReceiver(cfg config.ClientConfig, slot *LatestSlot, logger customlog.Logger) *Receiver {
	return &Receiver{
		addr:        net.JoinHostPort(cfg.ServerAddress, strconv.Itoa(cfg.ServerPort)),
		dialTimeout: cfg.DialTimeout(),
		policy: RetryPolicy{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Delay:       cfg.ReconnectDelay(),
		},
		slot:   slot,
		logger: logger,
	}
}

// Connect starts the receive loop. Connection failures are retried per the
// retry policy while in Reconnecting; the receiver surfaces Failed after
// exhausting the budget.
func (r *Receiver) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyConnected
	}

	r.running = true
	r.done = make(chan struct{})
	r.setState(Connecting)

	r.wg.Add(1)
	go r.run(r.done)
	return nil
}

// Disconnect closes the connection and transitions to Disconnected. It is
// safe to call from any state, including a receiver that never connected.
func (r *Receiver) Disconnect() {
	r.mu.Lock()
	if !r.running {
		r.setState(Disconnected)
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.done)
	if r.conn != nil {
		r.conn.Close()
	}
	r.mu.Unlock()

	r.wg.Wait()
	r.setState(Disconnected)
}

// State returns the current connection state.
func (r *Receiver) State() ConnectionState {
	return ConnectionState(r.state.Load())
}

// LastFrameAt returns when the last frame was stored, zero if none arrived.
func (r *Receiver) LastFrameAt() time.Time {
	ns := r.lastFrameNs.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Stats returns a snapshot of the receiver counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		State:           r.State().String(),
		FramesReceived:  r.framesReceived.Load(),
		DecodeErrors:    r.decodeErrors.Load(),
		LastFrameUnixNs: r.lastFrameNs.Load(),
	}
}

func (r *Receiver) setState(s ConnectionState) {
	r.state.Store(int32(s))
}

// run dials, reads until the connection breaks, and reconnects per policy.
// The attempt counter resets after every successful connect, so the retry
// budget bounds consecutive failures rather than total session length.
func (r *Receiver) run(done chan struct{}) {
	defer r.wg.Done()

	attempts := 0
	for {
		conn, err := net.DialTimeout("tcp", r.addr, r.dialTimeout)
		if err != nil {
			attempts++
			if attempts >= r.policy.MaxAttempts {
				r.logger.Errorf("Giving up on %s after %d attempts: %v", r.addr, attempts, err)
				r.setState(Failed)
				return
			}
			r.setState(Reconnecting)
			r.logger.Warnf("Connect to %s failed (attempt %d/%d): %v", r.addr, attempts, r.policy.MaxAttempts, err)
			select {
			case <-done:
				return
			case <-time.After(r.policy.Delay):
			}
			continue
		}

		attempts = 0
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		r.mu.Lock()
		if !r.running {
			r.mu.Unlock()
			conn.Close()
			return
		}
		r.conn = conn
		r.mu.Unlock()

		r.setState(Connected)
		r.logger.Infof("Connected to %s", r.addr)

		r.readLoop(conn, done)

		r.mu.Lock()
		r.conn = nil
		r.mu.Unlock()
		conn.Close()

		select {
		case <-done:
			return
		default:
		}

		r.setState(Reconnecting)
		r.logger.Warnf("Connection to %s lost, reconnecting", r.addr)
		select {
		case <-done:
			return
		case <-time.After(r.policy.Delay):
		}
	}
}

// readLoop decodes frames until the connection errors out. Malformed
// messages are dropped and counted; the previously stored frame survives.
func (r *Receiver) readLoop(conn net.Conn, done chan struct{}) {
	reader := codec.NewReader(conn)
	for {
		frame, err := reader.Next()
		if err != nil {
			var decodeErr *codec.DecodeError
			if errors.As(err, &decodeErr) {
				r.decodeErrors.Add(1)
				r.logger.Warnf("Dropping malformed frame: %v", decodeErr)
				continue
			}
			select {
			case <-done:
			default:
				r.logger.Debugf("Read from %s failed: %v", r.addr, err)
			}
			return
		}

		if r.slot.Store(frame) {
			r.framesReceived.Add(1)
			r.lastFrameNs.Store(time.Now().UnixNano())
		}
		if r.State() == Connected {
			r.setState(Streaming)
		}
	}
}
