// Package scanner drives the scan loop: it enumerates candidate
// paths, prunes them against the blacklist, probes for liquidity and
// fans the survivors out to the ladder evaluator.
package scanner

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/flasharb/pathgen"
	"github.com/michaelpento.lv/flasharb/router"
	"github.com/michaelpento.lv/flasharb/types"
	umath "github.com/michaelpento.lv/flasharb/utils/math"
	"github.com/michaelpento.lv/flasharb/utils/metrics"
)

// Evaluator runs the trial ladder for one path and router assignment.
type Evaluator interface {
	Evaluate(ctx context.Context, path *types.Path, routers []common.Address) (*types.Outcome, error)
}

// Prober answers which routers have liquidity for a pair.
type Prober interface {
	ProbeLiquidity(ctx context.Context, tokenIn, tokenOut common.Address, probeAmount *big.Int, routers []common.Address) ([]common.Address, error)
}

// Blacklist is the read side of the failure cache consulted before
// every attempt.
type Blacklist interface {
	IsBlacklisted(p *types.Path) bool
}

// Config holds the scan loop pacing knobs.
type Config struct {
	// CycleDelay is the pause between full enumeration passes.
	CycleDelay time.Duration

	// AttemptDelay is the pause between path attempts within a cycle.
	AttemptDelay time.Duration

	// RequestsPerSecond caps outbound RPC pressure across the whole
	// pipeline.
	RequestsPerSecond float64

	// MaxConcurrent bounds the number of paths evaluated in parallel.
	MaxConcurrent int

	// ProbeUnits is the liquidity probe size in whole units of the
	// path's origin token.
	ProbeUnits int64
}

// DefaultConfig returns conservative pacing suitable for a public RPC.
func DefaultConfig() Config {
	return Config{
		CycleDelay:        time.Second * 5,
		AttemptDelay:      time.Millisecond * 200,
		RequestsPerSecond: 10,
		MaxConcurrent:     4,
		ProbeUnits:        1,
	}
}

// Scanner owns one scan loop over a fixed trading universe.
type Scanner struct {
	cfg         Config
	tokens      []types.Token
	settlements []types.Token
	registry    *router.Registry
	blacklist   Blacklist
	prober      Prober
	evaluator   Evaluator
	limiter     *rate.Limiter
	metrics     *metrics.ScanMetrics
	logger      *zap.Logger
}

// New wires a scanner over the given universe and settlement set.
// m may be nil.
func New(cfg Config, tokens, settlements []types.Token, registry *router.Registry, blacklist Blacklist, prober Prober, evaluator Evaluator, m *metrics.ScanMetrics, logger *zap.Logger) *Scanner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.ProbeUnits <= 0 {
		cfg.ProbeUnits = DefaultConfig().ProbeUnits
	}
	return &Scanner{
		cfg:         cfg,
		tokens:      tokens,
		settlements: settlements,
		registry:    registry,
		blacklist:   blacklist,
		prober:      prober,
		evaluator:   evaluator,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1),
		metrics:     m,
		logger:      logger,
	}
}

// Run executes scan cycles until ctx is cancelled. Each cycle gets a
// fresh session; nothing carries over between cycles except the
// persistent blacklist.
func (s *Scanner) Run(ctx context.Context) error {
	var cycle uint64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cycle++
		session := &types.ScanSession{Cycle: cycle}

		start := time.Now()
		if err := s.runCycle(ctx, session); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("Scan cycle failed", zap.Uint64("cycle", cycle), zap.Error(err))
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.Cycles.Inc()
			s.metrics.Attempts.Add(float64(session.Attempted))
			s.metrics.PathsSkipped.Add(float64(session.Skipped))
			s.metrics.CycleDuration.Observe(elapsed.Seconds())
		}
		s.logger.Info("Scan cycle complete",
			zap.Uint64("cycle", session.Cycle),
			zap.Int("attempted", session.Attempted),
			zap.Int("skipped", session.Skipped),
			zap.Int("executed", session.Executed),
			zap.Duration("elapsed", time.Since(start)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.CycleDelay):
		}
	}
}

// runCycle walks one full enumeration pass. Paths are produced
// lazily; a path blacklisted mid-cycle by a concurrent evaluation is
// pruned when the enumerator reaches it, not at cycle start.
func (s *Scanner) runCycle(ctx context.Context, session *types.ScanSession) error {
	// Next is only ever called from this goroutine, so the skip
	// counter needs no lock.
	enum := pathgen.New(s.tokens, s.settlements, func(p *types.Path) bool {
		if s.blacklist.IsBlacklisted(p) {
			session.Skipped++
			return true
		}
		return false
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)

	results := make(chan *types.Outcome)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for outcome := range results {
			session.Attempted++
			if outcome.Executed {
				session.Executed++
			}
		}
	}()

	for {
		path := enum.Next()
		if path == nil {
			break
		}
		if err := gctx.Err(); err != nil {
			break
		}
		if s.metrics != nil {
			s.metrics.PathsEmitted.Inc()
		}

		p := path
		g.Go(func() error {
			s.scanPath(gctx, p, results)
			return nil
		})

		select {
		case <-gctx.Done():
		case <-time.After(s.cfg.AttemptDelay):
		}
	}

	err := g.Wait()
	close(results)
	<-done
	return err
}

// scanPath probes liquidity for the path's first leg and walks the
// ladder for every viable router assignment, stopping after the first
// execution.
func (s *Scanner) scanPath(ctx context.Context, path *types.Path, results chan<- *types.Outcome) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	origin := path.Tokens[0]
	probe := umath.Scale(s.cfg.ProbeUnits, origin.Decimals)
	liquid, err := s.prober.ProbeLiquidity(ctx, origin.Address, path.Tokens[1].Address, probe, s.registry.QuotableAddresses())
	if err != nil {
		s.logger.Warn("Liquidity probe failed",
			zap.String("path", path.Symbols()),
			zap.Error(err))
		return
	}
	if len(liquid) == 0 {
		return
	}

	for _, routers := range s.assignments(path, liquid) {
		// A sibling assignment may have exhausted its ladder and
		// blacklisted the path since the enumerator emitted it.
		if s.blacklist.IsBlacklisted(path) {
			return
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		outcome, err := s.evaluator.Evaluate(ctx, path, routers)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("Evaluation failed",
				zap.String("path", path.Symbols()),
				zap.Error(err))
			continue
		}

		select {
		case results <- outcome:
		case <-ctx.Done():
			return
		}
		if outcome.Executed {
			return
		}
	}
}

// assignments expands the liquid router set into the per-leg router
// combinations to try: ordered in/out pairs for pair paths, and for
// triangles every three-router combination with at least two distinct
// routers. Routing all three legs through one router is never an
// arbitrage.
func (s *Scanner) assignments(path *types.Path, liquid []common.Address) [][]common.Address {
	var out [][]common.Address
	if path.Kind == types.KindPair {
		for _, in := range liquid {
			for _, outR := range liquid {
				if in == outR {
					continue
				}
				out = append(out, []common.Address{in, outR})
			}
		}
		return out
	}
	for _, r1 := range liquid {
		for _, r2 := range liquid {
			for _, r3 := range liquid {
				if r1 == r2 && r2 == r3 {
					continue
				}
				out = append(out, []common.Address{r1, r2, r3})
			}
		}
	}
	return out
}
