package sweep

import (
	"context"
	"fmt"
	"log"

	"github.com/kestrel-data/sweepfeatures/internal/config"
	"github.com/kestrel-data/sweepfeatures/internal/sweep/imu"
)

// SummaryStore persists per-sweep summaries; *Store implements it.
type SummaryStore interface {
	SaveSummary(ctx context.Context, summary MotionSummary, sw *Sweep, feats *Features) error
}

// Pipeline connects the point path to the sweep worker. The packet
// path (AddPoints) only accumulates and hands completed sweeps over a
// buffered channel; the worker goroutine does the heavy lifting:
// history snapshot, motion compensation, feature classification,
// publish and store. A slow worker drops whole sweeps rather than
// backing up into the UDP receive path.
type Pipeline struct {
	history    *imu.History
	comp       *Compensator
	classifier *Classifier
	acc        *Accumulator
	stats      *PacketStats
	publisher  Publisher
	store      SummaryStore

	sweeps  chan *Sweep
	dropped int64
}

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	Params  config.Params
	History *imu.History
	// Mount may be nil when no IMU-to-lidar transform applies.
	Mount     *MountResolver
	Stats     *PacketStats
	Publisher Publisher
	// Store may be nil to skip persistence.
	Store SummaryStore
	// QueueSize bounds sweeps buffered between accumulator and worker
	// (default 4).
	QueueSize int
}

// NewPipeline builds the pipeline. History is required; Publisher
// defaults to a LogPublisher.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.History == nil {
		return nil, fmt.Errorf("pipeline requires an inertial history")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = LogPublisher{}
	}
	queueSize := cfg.QueueSize
	if queueSize == 0 {
		queueSize = 4
	}

	p := &Pipeline{
		history:    cfg.History,
		comp:       NewCompensator(cfg.Mount),
		classifier: NewClassifier(cfg.Params),
		stats:      cfg.Stats,
		publisher:  cfg.Publisher,
		store:      cfg.Store,
		sweeps:     make(chan *Sweep, queueSize),
	}
	p.acc = NewAccumulator(AccumulatorConfig{
		ScanPeriod: cfg.Params.ScanPeriod,
		OnSweep:    p.enqueue,
	})
	return p, nil
}

// AddPoints feeds parsed points into the current sweep. Called from the
// packet path; never blocks on the worker.
func (p *Pipeline) AddPoints(points []RawPoint) {
	p.acc.AddPoints(points)
}

// Flush completes the in-progress sweep regardless of azimuth coverage.
func (p *Pipeline) Flush() {
	p.acc.Flush()
}

// enqueue hands a completed sweep to the worker, dropping it when the
// queue is full.
func (p *Pipeline) enqueue(sw *Sweep) {
	select {
	case p.sweeps <- sw:
	default:
		p.dropped++
		log.Printf("\033[93msweep worker backlogged, dropping sweep %s (%d dropped total)\033[0m", sw.ID, p.dropped)
	}
}

// Run processes completed sweeps until the context is cancelled. It
// drains the queue before returning so flushed sweeps are not lost on
// shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// The run context is already dead; drain with a fresh one so
			// the final store writes still land.
			drainCtx := context.Background()
			for {
				select {
				case sw := <-p.sweeps:
					p.process(drainCtx, sw)
				default:
					return ctx.Err()
				}
			}
		case sw := <-p.sweeps:
			p.process(ctx, sw)
		}
	}
}

// process runs one sweep through compensation, classification, publish
// and store. Each sweep is compensated against a single history
// snapshot so all its points see a consistent inertial timeline.
func (p *Pipeline) process(ctx context.Context, sw *Sweep) {
	snapshot := p.history.Snapshot()
	summary := p.comp.Compensate(sw, snapshot)
	feats := p.classifier.Classify(sw)

	if p.stats != nil {
		p.stats.AddSweep()
	}
	if err := p.publisher.Publish(sw, feats, summary); err != nil {
		log.Printf("failed to publish sweep %s: %v", sw.ID, err)
	}
	if p.store != nil {
		if err := p.store.SaveSummary(ctx, summary, sw, feats); err != nil {
			log.Printf("failed to store summary for sweep %s: %v", sw.ID, err)
		}
	}
}
