package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/card-detect-mcp/internal/detection"
	"github.com/ironsheep/card-detect-mcp/internal/imaging"
)

// Default tier budgets.
const (
	DefaultVisionTimeout   = 8 * time.Second
	DefaultEnsembleTimeout = 5 * time.Second
)

// VisionDetector is the remote detection tier. *vision.Client implements it.
type VisionDetector interface {
	Detect(ctx context.Context, v imaging.View, filename string) ([]detection.Candidate, error)
}

// Orchestrator runs the detection cascade: vision, then the signal ensemble,
// then the fallback tiler. The first tier that yields an accepted candidate
// wins.
//
// An Orchestrator holds configuration only and is safe for concurrent use.
type Orchestrator struct {
	vision          VisionDetector
	detectors       []detection.Strategy
	combiner        *detection.Combiner
	tiler           detection.Tiler
	visionTimeout   time.Duration
	ensembleTimeout time.Duration
	workers         int
	logger          *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVision enables the vision tier. A nil detector disables it.
func WithVision(v VisionDetector) Option {
	return func(o *Orchestrator) { o.vision = v }
}

// WithDetectors replaces the signal detectors run by the ensemble tier.
func WithDetectors(strategies ...detection.Strategy) Option {
	return func(o *Orchestrator) { o.detectors = strategies }
}

// WithCombiner sets the fusion weights and acceptance policy.
func WithCombiner(c *detection.Combiner) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.combiner = c
		}
	}
}

// WithVisionTimeout bounds the vision tier.
func WithVisionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.visionTimeout = d }
}

// WithEnsembleTimeout bounds the wait for the signal detectors.
func WithEnsembleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.ensembleTimeout = d }
}

// WithWorkers bounds how many signal detectors run at once.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Orchestrator with the default detectors and no vision tier.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		detectors:       detection.SignalStrategies(),
		combiner:        detection.NewCombiner(),
		tiler:           detection.DefaultTiler(),
		visionTimeout:   DefaultVisionTimeout,
		ensembleTimeout: DefaultEnsembleTimeout,
		workers:         runtime.NumCPU(),
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	if o.visionTimeout <= 0 {
		o.visionTimeout = DefaultVisionTimeout
	}
	if o.ensembleTimeout <= 0 {
		o.ensembleTimeout = DefaultEnsembleTimeout
	}
	return o
}

// WithoutVision returns a copy of o that skips the vision tier.
func (o *Orchestrator) WithoutVision() *Orchestrator {
	cp := *o
	cp.vision = nil
	return &cp
}

// VisionEnabled reports whether the vision tier is configured.
func (o *Orchestrator) VisionEnabled() bool {
	return o.vision != nil
}

// Detect locates card candidates in raster.
//
// The only error returned is *InvalidImageError. For any other raster the
// result holds at least one candidate: tier failures, timeouts and
// cancellation all end in the fallback tier, and are reported in Result.Debug.
func (o *Orchestrator) Detect(ctx context.Context, raster *imaging.Raster, meta SourceMetadata) (*Result, error) {
	start := time.Now()
	if err := validate(raster); err != nil {
		return nil, err
	}

	v := raster.View()
	debug := DebugInfo{
		InvocationID:   uuid.NewString(),
		Source:         meta,
		DetectorCounts: make(map[detection.Method]int),
	}
	log := o.logger.With(zap.String("invocation", debug.InvocationID))
	log.Debug("detect start",
		zap.String("filename", meta.Filename),
		zap.Int("width", raster.Width),
		zap.Int("height", raster.Height),
	)

	cands, method := o.cascade(ctx, v, meta, &debug, log)

	debug.MethodUsed = method
	debug.Cancelled = ctx.Err() != nil
	res := &Result{
		Candidates:       cands,
		ProcessingTimeMs: sinceMs(start),
		Debug:            debug,
	}
	log.Debug("detect done",
		zap.String("method", string(method)),
		zap.Int("candidates", len(cands)),
		zap.Int64("elapsed_ms", res.ProcessingTimeMs),
		zap.Bool("cancelled", debug.Cancelled),
	)
	return res, nil
}

func (o *Orchestrator) cascade(ctx context.Context, v imaging.View, meta SourceMetadata, debug *DebugInfo, log *zap.Logger) ([]detection.Candidate, detection.Method) {
	if o.vision != nil && ctx.Err() == nil {
		accepted, trace := o.visionTier(ctx, v, meta.Filename)
		debug.Tiers = append(debug.Tiers, trace)
		logTier(log, trace)
		if len(accepted) > 0 {
			return accepted, detection.MethodAIVision
		}
	} else {
		debug.Tiers = append(debug.Tiers, TierTrace{Tier: TierVision})
	}

	if len(o.detectors) > 0 && ctx.Err() == nil {
		accepted, trace := o.ensembleTier(ctx, v, debug.DetectorCounts)
		debug.Tiers = append(debug.Tiers, trace)
		logTier(log, trace)
		if len(accepted) > 0 {
			return accepted, accepted[0].Method
		}
	} else {
		debug.Tiers = append(debug.Tiers, TierTrace{Tier: TierEnsemble})
	}

	accepted, trace := o.fallbackTier(v)
	debug.Tiers = append(debug.Tiers, trace)
	logTier(log, trace)
	return accepted, detection.MethodFallbackGrid
}

func (o *Orchestrator) visionTier(ctx context.Context, v imaging.View, filename string) ([]detection.Candidate, TierTrace) {
	start := time.Now()
	trace := TierTrace{Tier: TierVision, Attempted: true}

	ctx, cancel := context.WithTimeout(ctx, o.visionTimeout)
	defer cancel()

	type outcome struct {
		cands []detection.Candidate
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		out.err = protect(string(detection.MethodAIVision), func() error {
			var err error
			out.cands, err = o.vision.Detect(ctx, v, filename)
			return err
		})
		done <- out
	}()

	var raw []detection.Candidate
	select {
	case out := <-done:
		raw = out.cands
		if out.err != nil {
			trace.Error = out.err.Error()
			raw = nil
		}
	case <-ctx.Done():
		trace.Error = errors.Wrap(ctx.Err(), "vision").Error()
	}

	accepted := o.accept(raw, v.Width(), v.Height())
	trace.Raw = len(raw)
	trace.Accepted = len(accepted)
	trace.DurationMs = sinceMs(start)
	return accepted, trace
}

// ensembleTier runs the signal detectors concurrently and fuses their output.
// A detector that fails, panics or misses the deadline contributes nothing.
func (o *Orchestrator) ensembleTier(ctx context.Context, v imaging.View, counts map[detection.Method]int) ([]detection.Candidate, TierTrace) {
	start := time.Now()
	trace := TierTrace{Tier: TierEnsemble, Attempted: true}

	ctx, cancel := context.WithTimeout(ctx, o.ensembleTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		results  = make([][]detection.Candidate, len(o.detectors))
		errs     = make([]error, len(o.detectors))
		finished = make([]bool, len(o.detectors))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i, s := range o.detectors {
			i, s := i, s
			g.Go(func() error {
				var cands []detection.Candidate
				err := protect(string(s.Method), func() error {
					var err error
					cands, err = s.Detect(gctx, v)
					return err
				})
				mu.Lock()
				results[i], errs[i], finished[i] = cands, err, true
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	var (
		raw []detection.Candidate
		err error
	)
	mu.Lock()
	for i, s := range o.detectors {
		switch {
		case !finished[i]:
			err = multierr.Append(err, errors.Wrapf(ctx.Err(), "%s: abandoned", s.Method))
		case errs[i] != nil:
			err = multierr.Append(err, errs[i])
		default:
			raw = append(raw, results[i]...)
			counts[s.Method] += len(results[i])
		}
	}
	mu.Unlock()

	if err != nil {
		trace.Error = err.Error()
	}
	accepted := o.combiner.Combine(detection.Sanitize(raw, v.Width(), v.Height()))
	trace.Raw = len(raw)
	trace.Accepted = len(accepted)
	trace.DurationMs = sinceMs(start)
	return accepted, trace
}

// fallbackTier places heuristic regions. It always yields at least one
// candidate for a validated raster. Fallback confidences sit below the
// acceptance floor, so only clipping and the count cap apply here.
func (o *Orchestrator) fallbackTier(v imaging.View) ([]detection.Candidate, TierTrace) {
	start := time.Now()
	raw := o.tiler.Tile(v.Width(), v.Height())
	accepted := detection.Accept(detection.Sanitize(raw, v.Width(), v.Height()), 0, o.combiner.MaxCandidates)
	return accepted, TierTrace{
		Tier:       TierFallback,
		Attempted:  true,
		Raw:        len(raw),
		Accepted:   len(accepted),
		DurationMs: sinceMs(start),
	}
}

// accept applies the acceptance policy shared by the non-terminal tiers.
func (o *Orchestrator) accept(cands []detection.Candidate, width, height int) []detection.Candidate {
	c := o.combiner
	return detection.Accept(
		detection.Suppress(detection.Sanitize(cands, width, height), c.DedupIoU),
		c.MinConfidence, c.MaxCandidates,
	)
}

// protect runs fn and turns a panic into an error tagged with name.
func protect(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", name, r)
		}
	}()
	if err := fn(); err != nil {
		return errors.Wrap(err, name)
	}
	return nil
}

func validate(r *imaging.Raster) error {
	if r == nil {
		return &InvalidImageError{Reason: "no raster"}
	}
	if err := r.Validate(); err != nil {
		return &InvalidImageError{Width: r.Width, Height: r.Height, Reason: err.Error()}
	}
	if r.Width < detection.MinCardWidth || r.Height < detection.MinCardHeight {
		return &InvalidImageError{
			Width:  r.Width,
			Height: r.Height,
			Reason: fmt.Sprintf("smaller than the minimum card size %dx%d", detection.MinCardWidth, detection.MinCardHeight),
		}
	}
	return nil
}

func logTier(log *zap.Logger, t TierTrace) {
	fields := []zap.Field{
		zap.String("tier", string(t.Tier)),
		zap.Int("raw", t.Raw),
		zap.Int("accepted", t.Accepted),
		zap.Int64("duration_ms", t.DurationMs),
	}
	if t.Error != "" {
		log.Warn("tier failed", append(fields, zap.String("error", t.Error))...)
		return
	}
	log.Debug("tier complete", fields...)
}
