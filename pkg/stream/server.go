package stream

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/open-handtrack/pipeline/pkg/codec"
	"github.com/open-handtrack/pipeline/pkg/config"
	"github.com/open-handtrack/pipeline/pkg/hand"
	customlog "github.com/open-handtrack/pipeline/pkg/log"
)

// Common errors
var (
	ErrAlreadyStarted = errors.New("stream server already started")
	ErrNotStarted     = errors.New("stream server not started")
)

// FrameSource is the producer interface the server pulls from. NextFrame
// returns nil when there is no new observation since the last call, in which
// case the server skips the send rather than re-sending the previous frame;
// clients keep rendering their last known pose either way.
type FrameSource interface {
	NextFrame() *hand.Frame
}

// Server owns the listening socket and pushes encoded frames to every
// connected client, best-effort. A pump goroutine pulls the source at its
// own cadence into a latest-frame cell; each client samples that cell from
// an independent sender goroutine, so a slow client skips frames instead of
// building a backlog, and a broken client takes down only itself.
type Server struct {
	cfg    config.ServerConfig
	source FrameSource
	logger customlog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  map[string]net.Conn
	started  bool
	done     chan struct{}
	wg       sync.WaitGroup

	latest       LatestSlot
	framesPulled atomic.Uint64
	framesSent   atomic.Uint64
}

// ServerStats is a snapshot of server counters for diagnostics.
type ServerStats struct {
	Clients      int    `json:"clients"`
	FramesPulled uint64 `json:"frames_pulled"`
	FramesSent   uint64 `json:"frames_sent"`
}

// NewServer creates a stream server. Call Start to begin listening.
func NewServer(cfg config.ServerConfig, source FrameSource, logger customlog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		source:  source,
		logger:  logger,
		clients: make(map[string]net.Conn),
	}
}

// Start begins listening and pulling frames from the source. Calling Start
// on an already-started server returns ErrAlreadyStarted; it never silently
// double-binds.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.started = true
	s.done = make(chan struct{})

	s.wg.Add(2)
	go s.pumpLoop()
	go s.acceptLoop()

	s.logger.Infof("Stream server listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound listener address, useful when Port is 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and all client connections and waits for the
// server goroutines to finish. Safe to call on a stopped server.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.done)
	s.listener.Close()
	for id, conn := range s.clients {
		conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Infof("Stream server stopped")
}

// ClientCount returns the number of currently connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() ServerStats {
	return ServerStats{
		Clients:      s.ClientCount(),
		FramesPulled: s.framesPulled.Load(),
		FramesSent:   s.framesSent.Load(),
	}
}

// pumpLoop pulls the newest frame from the source into the latest cell.
func (s *Server) pumpLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			frame := s.source.NextFrame()
			if frame == nil {
				continue
			}
			if s.latest.Store(frame) {
				s.framesPulled.Add(1)
			}
		}
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warnf("Accept error: %v", err)
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		id := uuid.NewString()
		s.mu.Lock()
		if !s.started {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.clients[id] = conn
		s.mu.Unlock()

		s.logger.Infof("Client %s connected from %s", id, conn.RemoteAddr())
		s.wg.Add(1)
		go s.serveClient(id, conn)
	}
}

// serveClient samples the latest cell at the configured send cadence and
// writes each new frame to the client. Write deadlines bound how long a
// stalled client can block its own sender.
func (s *Server) serveClient(id string, conn net.Conn) {
	defer s.wg.Done()
	defer s.removeClient(id, conn)

	ticker := time.NewTicker(s.cfg.SendInterval())
	defer ticker.Stop()

	var lastSent uint64
	sentAny := false

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			frame := s.latest.Load()
			if frame == nil || (sentAny && frame.Seq == lastSent) {
				continue
			}

			msg, err := codec.Encode(frame)
			if err != nil {
				s.logger.Errorf("Dropping unencodable frame seq=%d: %v", frame.Seq, err)
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout()))
			if _, err := conn.Write(msg); err != nil {
				s.logger.Infof("Client %s send failed, closing: %v", id, err)
				return
			}

			lastSent = frame.Seq
			sentAny = true
			s.framesSent.Add(1)
		}
	}
}

func (s *Server) removeClient(id string, conn net.Conn) {
	s.mu.Lock()
	if _, ok := s.clients[id]; ok {
		delete(s.clients, id)
		s.mu.Unlock()
		conn.Close()
		s.logger.Infof("Client %s disconnected", id)
		return
	}
	s.mu.Unlock()
}
