package tpp

import (
	"fmt"
	"log/slog"

	"github.com/roach88/tppenforce/internal/ir"
	"github.com/roach88/tppenforce/internal/rewrite"
)

// Pattern names, as they appear in rewrite events and the journal.
const (
	PatternAlignContraction = "align-contraction"
	PatternFoldPadChain     = "fold-pad-chain"
	PatternGeneralizePad    = "generalize-pad"
)

// Target multiples and the recognized contraction tag.
const (
	DefaultLaneMultiple  = 16
	DefaultBlockMultiple = 6
	MatmulTag            = "tpp.matmul"
)

// Config parameterizes Run.
type Config struct {
	// LaneMultiple is the required multiple of C's column count.
	LaneMultiple int64 `yaml:"lane_multiple" json:"lane_multiple"`

	// BlockMultiple is the required multiple of C's row count.
	BlockMultiple int64 `yaml:"block_multiple" json:"block_multiple"`

	// Tag selects the contractions to legalize.
	Tag string `yaml:"tag" json:"tag"`

	// MaxIterations caps the driver's outer iterations.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// EnableGeneralizedPad hands Feasible to GeneralizePad. When unset the
	// pattern is still registered but declines every pad.
	EnableGeneralizedPad bool `yaml:"enable_generalized_pad" json:"enable_generalized_pad"`

	// Feasible is the GeneralizePad predicate when EnableGeneralizedPad is
	// set; nil means AlwaysInfeasible.
	Feasible FeasibilityFunc `yaml:"-" json:"-"`

	// Logger receives driver records; nil means slog.Default().
	Logger *slog.Logger `yaml:"-" json:"-"`

	// Clock stamps rewrite events; nil numbers each run from 1.
	Clock *rewrite.Clock `yaml:"-" json:"-"`
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		LaneMultiple:  DefaultLaneMultiple,
		BlockMultiple: DefaultBlockMultiple,
		Tag:           MatmulTag,
		MaxIterations: rewrite.DefaultMaxIterations,
	}
}

// Validate rejects configurations the patterns cannot work with.
func (c Config) Validate() error {
	if c.LaneMultiple < 1 {
		return fmt.Errorf("invalid config: lane multiple must be positive, got %d", c.LaneMultiple)
	}
	if c.BlockMultiple < 1 {
		return fmt.Errorf("invalid config: block multiple must be positive, got %d", c.BlockMultiple)
	}
	if c.Tag == "" {
		return fmt.Errorf("invalid config: tag is required")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("invalid config: max iterations must not be negative, got %d", c.MaxIterations)
	}
	return nil
}

// PopulateEnforcePatterns returns the patterns of the pass in registration
// order: alignment, chain folding, then pad generalization. Unless
// cfg.EnableGeneralizedPad is set the last one uses AlwaysInfeasible.
func PopulateEnforcePatterns(cfg Config) []rewrite.Pattern {
	feasible := FeasibilityFunc(AlwaysInfeasible)
	if cfg.EnableGeneralizedPad && cfg.Feasible != nil {
		feasible = cfg.Feasible
	}
	return []rewrite.Pattern{
		AlignContraction{
			LaneMultiple:  cfg.LaneMultiple,
			BlockMultiple: cfg.BlockMultiple,
			Tag:           cfg.Tag,
		},
		FoldPadChain{},
		GeneralizePad{Feasible: feasible},
	}
}

// Run applies the pass to fn in place.
//
// A nil error means fn is consistent, whether or not anything was
// rewritten; Result.Converged reports whether a fixed point was reached.
// Errors are the IR taxonomy (shape invariant violations in particular),
// wrapped; fn is left as it was before the failing rewrite.
func Run(fn *ir.Function, cfg Config) (*rewrite.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := rewrite.NewDriver(
		rewrite.WithMaxIterations(cfg.MaxIterations),
		rewrite.WithLogger(logger),
		rewrite.WithClock(cfg.Clock),
	)
	if err := d.RegisterPatterns(PopulateEnforcePatterns(cfg)); err != nil {
		return nil, fmt.Errorf("register patterns: %w", err)
	}

	res, err := d.Apply(fn)
	if err != nil {
		return res, fmt.Errorf("enforce preconditions on @%s: %w", fn.Name, err)
	}
	return res, nil
}
