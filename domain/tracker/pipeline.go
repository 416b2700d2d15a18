// Package tracker wires the receiver, latest-frame slot, update scheduler,
// and scene mapper into one pipeline object with an explicit
// create/start/stop lifecycle. The host holds one instance; there is no
// process-wide tracker state.
package tracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/open-handtrack/pipeline/domain/scene"
	"github.com/open-handtrack/pipeline/pkg/config"
	customlog "github.com/open-handtrack/pipeline/pkg/log"
	"github.com/open-handtrack/pipeline/pkg/scheduler"
	"github.com/open-handtrack/pipeline/pkg/stream"
)

// Status is a diagnostics snapshot of the running pipeline.
type Status struct {
	Connection     stream.ReceiverStats `json:"connection"`
	FramesApplied  uint64               `json:"frames_applied"`
	FramesDropped  uint64               `json:"frames_dropped"`
	LastAppliedSeq uint64               `json:"last_applied_seq"`
	Stale          bool                 `json:"stale"`
}

// Pipeline drives scene updates from a remote landmark stream. Failures
// degrade to "keep last known good pose"; nothing here is fatal to the host.
type Pipeline struct {
	cfg    *config.Config
	logger customlog.Logger

	slot     *stream.LatestSlot
	receiver *stream.Receiver
	ticker   *scheduler.Ticker
	mapper   *scene.Mapper

	mu      sync.Mutex
	started bool

	lastApplied   atomic.Uint64
	appliedAny    atomic.Bool
	framesApplied atomic.Uint64
	framesDropped atomic.Uint64
	stale         atomic.Bool
}

// New builds a pipeline rendering into sc. Scene objects are created here,
// once; Start and Stop only toggle the data flow.
func New(cfg *config.Config, sc scene.Scene, logger customlog.Logger) *Pipeline {
	styles := make([]scene.JointStyle, 0, len(cfg.Mapper.HandColors))
	for _, c := range cfg.Mapper.HandColors {
		styles = append(styles, scene.JointStyle{Color: c, Radius: 0.02})
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		slot:   &stream.LatestSlot{},
		mapper: scene.NewMapper(sc, scene.TransformFromConfig(cfg.Mapper), styles, cfg.Mapper.AbsentDebounce),
	}
	p.receiver = stream.NewReceiver(cfg.Client, p.slot, logger)
	p.ticker = scheduler.New(cfg.Scheduler.UpdateInterval(), p.tick)
	return p
}

// Start connects the receiver and registers the update timer.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}
	if err := p.receiver.Connect(); err != nil {
		return err
	}
	if err := p.ticker.Start(); err != nil {
		p.receiver.Disconnect()
		return err
	}
	p.started = true
	p.logger.Infof("Tracking pipeline started")
	return nil
}

// Stop closes the transport connection and deregisters the timer. Scene
// objects keep their last-known pose; use Clear for an explicit reset.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.ticker.Stop()
	p.receiver.Disconnect()
	p.slot.Clear()
	p.appliedAny.Store(false)
	p.started = false
	p.logger.Infof("Tracking pipeline stopped")
}

// Clear hides every hand immediately. Only valid while stopped or between
// frames; the scheduler would otherwise re-show a present hand on the next
// tick, which is the intended behavior.
func (p *Pipeline) Clear() {
	p.mapper.HideAll()
}

// Status returns a diagnostics snapshot.
func (p *Pipeline) Status() Status {
	return Status{
		Connection:     p.receiver.Stats(),
		FramesApplied:  p.framesApplied.Load(),
		FramesDropped:  p.framesDropped.Load(),
		LastAppliedSeq: p.lastApplied.Load(),
		Stale:          p.stale.Load(),
	}
}

// tick runs on the scheduler goroutine. It reads the slot without blocking;
// an empty slot or an unchanged sequence number makes this a no-op tick, so
// joints keep their last position when the stream pauses.
func (p *Pipeline) tick(now time.Time) time.Duration {
	frame := p.slot.Load()
	if frame == nil {
		return 0
	}

	if p.appliedAny.Load() && frame.Seq == p.lastApplied.Load() {
		p.checkStale(now)
		return 0
	}

	if err := p.mapper.Apply(frame); err != nil {
		p.framesDropped.Add(1)
		p.lastApplied.Store(frame.Seq)
		p.appliedAny.Store(true)
		p.logger.Warnf("Discarding frame seq=%d: %v", frame.Seq, err)
		return 0
	}

	p.stale.Store(false)
	p.lastApplied.Store(frame.Seq)
	p.appliedAny.Store(true)
	p.framesApplied.Add(1)
	return 0
}

// checkStale freezes the scene visibly (and says so once) when no frame has
// arrived within the configured timeout while streaming.
func (p *Pipeline) checkStale(now time.Time) {
	timeout := p.cfg.Client.StaleTimeout()
	if timeout <= 0 || p.receiver.State() != stream.Streaming {
		return
	}
	last := p.receiver.LastFrameAt()
	if last.IsZero() || now.Sub(last) < timeout {
		return
	}
	if !p.stale.Swap(true) {
		p.logger.Warnf("No frames for %s; scene frozen at last known pose", timeout)
	}
}
