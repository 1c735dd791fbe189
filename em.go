package gmmmml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PerturbationResult is the uniform return contract of the EM optimizer and
// of every structural operator, so a driver can rank candidates solely by
// message length regardless of which operator produced them.
type PerturbationResult struct {
	// Mixture is the locally optimized candidate.
	Mixture *Mixture

	// LogLikelihoods is the per-point log-likelihood at the final E step.
	LogLikelihoods []float64

	// MessageLength is the MML score of the candidate.
	MessageLength MessageLength

	// EMIterations is the number of expectation steps performed.
	EMIterations int

	// DidNotConverge reports that the iteration cap was reached before the
	// relative-improvement threshold. A warning condition, not an error.
	DidNotConverge bool
}

// emState tracks the EM optimizer through its
// initialized -> E step -> M step -> converged cycle.
type emState uint8

const (
	emInitialized emState = iota
	emEStep
	emMStep
	emConverged
)

type expectationResult struct {
	resp           *mat.Dense
	logLikelihoods []float64
	sumLogDetCov   float64
	messageLength  MessageLength
}

// expectation computes responsibilities, per-point log-likelihood and the
// message length of the current parameters.
func expectation(y *mat.Dense, mix *Mixture, cfg *Config) (expectationResult, error) {
	resp, ll, err := ResponsibilityMatrix(y, mix.Means, mix.Covariances, mix.Weights)
	if err != nil {
		return expectationResult{}, err
	}

	n, d := y.Dims()
	slogdet := mix.Covariances.SumLogDet()
	ml := MixtureMessageLength(mix.K(), n, d, floats.Sum(ll), slogdet, mix.Weights, cfg.Yerr)
	if math.IsNaN(ml.Total) {
		panic(fmt.Sprintf("gmmmml: message length is not finite (K=%d)", mix.K()))
	}

	emit(cfg.Observer, "expectation", map[string]any{
		"K":              mix.K(),
		"message_length": ml,
		"responsibility": resp,
		"log_likelihood": ll,
	})
	return expectationResult{
		resp:           resp,
		logLikelihoods: ll,
		sumLogDetCov:   slogdet,
		messageLength:  ml,
	}, nil
}

// maximization re-estimates means, covariances and weights from the current
// responsibility matrix. The weight update uses a Krichevsky-Trofimov
// smoothed estimator so no component can reach exactly zero weight.
// parentResp, when non-nil, scales every responsibility column by the
// parent component's responsibility so a child sub-mixture's mass stays
// constrained to its parent's share.
func maximization(y *mat.Dense, mix *Mixture, resp *mat.Dense, parentResp []float64, cfg *Config) *Mixture {
	n, d := y.Dims()
	k := mix.K()

	newWeights := make([]float64, k)
	for m := 0; m < k; m++ {
		nm := floats.Sum(resp.RawRowView(m))
		newWeights[m] = (nm + 0.5) / (float64(n) + float64(k)/2)
	}

	// Parent-weighted effective memberships for the mean update.
	newMeans := mat.NewDense(k, d, nil)
	for m := 0; m < k; m++ {
		var weff float64
		sums := make([]float64, d)
		for i := 0; i < n; i++ {
			r := resp.At(m, i)
			if parentResp != nil {
				r *= parentResp[i]
			}
			weff += r
			for j := 0; j < d; j++ {
				sums[j] += r * y.At(i, j)
			}
		}
		for j := 0; j < d; j++ {
			newMeans.Set(m, j, sums[j]/weff)
		}
	}

	ops := cfg.CovarianceType.ops()
	newCovs := ops.estimate(y, resp, newMeans, cfg.CovarianceRegularization)

	assertFinite := func(v float64, what string) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			panic(fmt.Sprintf("gmmmml: non-finite %s after maximization step", what))
		}
	}
	for m := 0; m < k; m++ {
		assertFinite(newWeights[m], "weight")
		for j := 0; j < d; j++ {
			assertFinite(newMeans.At(m, j), "mean")
		}
		cov := newCovs.Component(m)
		for j := 0; j < d; j++ {
			for l := j; l < d; l++ {
				assertFinite(cov.At(j, l), "covariance")
			}
		}
	}

	out := &Mixture{Means: newMeans, Covariances: newCovs, Weights: newWeights}
	emit(cfg.Observer, "model", map[string]any{
		"mean":   newMeans,
		"cov":    newCovs,
		"weight": newWeights,
	})
	return out
}

// ExpectationMaximization runs EM to local convergence on the given mixture
// and returns the optimized candidate. The input mixture is not mutated.
// If mix.Responsibilities is non-nil it seeds the first maximization step;
// otherwise the initial expectation step provides it.
func ExpectationMaximization(y *mat.Dense, mix *Mixture, cfg Config) (*PerturbationResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return expectationMaximization(y, mix, nil, &cfg)
}

func expectationMaximization(y *mat.Dense, mix *Mixture, parentResp []float64, cfg *Config) (*PerturbationResult, error) {
	state := emInitialized
	work := mix.Clone()

	state = emEStep
	cur, err := expectation(y, work, cfg)
	if err != nil {
		return nil, err
	}

	resp := work.Responsibilities
	if resp == nil {
		resp = cur.resp
	}
	prevLL := floats.Sum(cur.logLikelihoods)
	iterations := 1
	didNotConverge := false

	for state != emConverged {
		state = emMStep
		work = maximization(y, work, resp, parentResp, cfg)

		state = emEStep
		cur, err = expectation(y, work, cfg)
		if err != nil {
			return nil, err
		}
		resp = cur.resp
		iterations++

		ll := floats.Sum(cur.logLikelihoods)
		relative := math.Abs((ll - prevLL) / prevLL)
		if math.IsNaN(relative) || math.IsInf(relative, 0) {
			panic("gmmmml: non-finite relative log-likelihood change in EM")
		}
		prevLL = ll

		switch {
		case relative <= cfg.Threshold:
			state = emConverged
		case iterations >= cfg.MaxEMIterations:
			state = emConverged
			didNotConverge = true
			cfg.warnf("EM iteration cap reached", "max_em_iterations", cfg.MaxEMIterations, "K", work.K())
		}
	}
	cfg.debugf("EM converged", "iterations", iterations, "K", work.K())

	work.Responsibilities = resp
	return &PerturbationResult{
		Mixture:        work,
		LogLikelihoods: cur.logLikelihoods,
		MessageLength:  cur.messageLength,
		EMIterations:   iterations,
		DidNotConverge: didNotConverge,
	}, nil
}
