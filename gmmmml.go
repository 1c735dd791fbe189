package gmmmml

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/exp/rand"
)

// CovarianceType selects the covariance structure of mixture components.
type CovarianceType int

const (
	// CovarianceFull uses an unconstrained D×D covariance matrix per component.
	CovarianceFull CovarianceType = iota
	// CovarianceDiag uses independent per-dimension variances per component.
	CovarianceDiag
)

func (t CovarianceType) String() string {
	switch t {
	case CovarianceFull:
		return "full"
	case CovarianceDiag:
		return "diag"
	default:
		return fmt.Sprintf("CovarianceType(%d)", int(t))
	}
}

// ErrSingularCovariance is returned when a covariance matrix cannot be
// Cholesky-factorized (full) or has a non-positive variance (diag). Callers
// scanning perturbation candidates normally skip the offending candidate
// rather than aborting the search.
var ErrSingularCovariance = errors.New("gmmmml: singular covariance matrix")

// Config controls mixture fitting behavior.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// CovarianceType is the covariance structure of individual components:
	// CovarianceFull for a free covariance matrix, or CovarianceDiag for a
	// diagonal one. Default: CovarianceFull.
	CovarianceType CovarianceType

	// CovarianceRegularization is added to the diagonal of every estimated
	// covariance matrix. Must be >= 0. Default: 0.
	CovarianceRegularization float64

	// Threshold is the relative improvement in summed log-likelihood
	// required between consecutive expectation steps before EM stops.
	// Must be > 0. Default: 1e-5.
	Threshold float64

	// MaxEMIterations caps the number of iterations per EM loop. Reaching
	// the cap is not an error; the result carries a DidNotConverge flag.
	// Must be >= 1. Default: 10000.
	MaxEMIterations int

	// Yerr is the assumed homoscedastic measurement precision of each data
	// point, used in the data term of the message length. Must be > 0.
	// Default: 0.001.
	Yerr float64

	// Workers controls the number of goroutines used to evaluate
	// perturbation candidates within one outer search iteration.
	// 0 means runtime.NumCPU(). Default: 0 (auto).
	Workers int

	// PredictiveStopping enables early termination of the search when the
	// extrapolated message lengths of all lookahead component counts are
	// non-decreasing. Requires enough search history to fit the trend
	// models; until then it has no effect. Default: false.
	PredictiveStopping bool

	// PredictiveLookahead is how many component counts beyond the current K
	// the predictive stopping rule forecasts. Default: 10.
	PredictiveLookahead int

	// InitialMixture optionally supplies an externally constructed starting
	// mixture (for example from k-means++). If nil, Search starts from a
	// single component with the global mean and covariance of the data.
	InitialMixture *Mixture

	// Observer receives named telemetry events ("model", "expectation",
	// "predict_*") during fitting. It is a pure observer: leaving it nil
	// never changes search outcomes.
	Observer Observer

	// Logger receives debug-level progress messages. Nil disables logging.
	Logger *slog.Logger

	// Rand is the random source used for Monte Carlo propagation of fit
	// uncertainty in the predictive component. Nil uses a fixed-seed source.
	Rand rand.Source
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		CovarianceType:      CovarianceFull,
		Threshold:           1e-5,
		MaxEMIterations:     10000,
		Yerr:                1e-3,
		PredictiveLookahead: 10,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Threshold == 0 {
		cfg.Threshold = 1e-5
	}
	if cfg.MaxEMIterations == 0 {
		cfg.MaxEMIterations = 10000
	}
	if cfg.Yerr == 0 {
		cfg.Yerr = 1e-3
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.PredictiveLookahead == 0 {
		cfg.PredictiveLookahead = 10
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.NewSource(1)
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive
// error if not.
func validateConfig(cfg *Config) error {
	switch cfg.CovarianceType {
	case CovarianceFull, CovarianceDiag:
		// valid
	default:
		return fmt.Errorf("gmmmml: invalid CovarianceType %d", int(cfg.CovarianceType))
	}
	if cfg.CovarianceRegularization < 0 {
		return fmt.Errorf("gmmmml: CovarianceRegularization must be >= 0, got %f", cfg.CovarianceRegularization)
	}
	if cfg.Threshold <= 0 {
		return fmt.Errorf("gmmmml: Threshold must be > 0, got %f", cfg.Threshold)
	}
	if cfg.MaxEMIterations < 1 {
		return fmt.Errorf("gmmmml: MaxEMIterations must be >= 1, got %d", cfg.MaxEMIterations)
	}
	if cfg.Yerr <= 0 {
		return fmt.Errorf("gmmmml: Yerr must be > 0, got %f", cfg.Yerr)
	}
	if cfg.PredictiveLookahead < 1 {
		return fmt.Errorf("gmmmml: PredictiveLookahead must be >= 1, got %d", cfg.PredictiveLookahead)
	}
	return nil
}

func (cfg *Config) debugf(msg string, args ...any) {
	if cfg.Logger != nil {
		cfg.Logger.Debug(msg, args...)
	}
}

func (cfg *Config) warnf(msg string, args ...any) {
	if cfg.Logger != nil {
		cfg.Logger.Warn(msg, args...)
	}
}
