package gmmmml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SearchResult is the outcome of a greedy structural search.
type SearchResult struct {
	// Mixture is the best mixture found.
	Mixture *Mixture

	// MessageLength is its MML score.
	MessageLength MessageLength

	// LogLikelihoods is the per-point log-likelihood under the best mixture.
	LogLikelihoods []float64

	// History records every mixture evaluated during the search, in order.
	History *SearchHistory

	// OuterIterations is the number of structural search iterations run.
	OuterIterations int
}

// Search fits a Gaussian mixture to y, choosing the number of components by
// minimum message length. y is N×D with D >= 2; rows are data points.
//
// The search is greedy and local: starting from a single component (or
// cfg.InitialMixture), each outer iteration applies every applicable
// structural operator (split on all components, merge and delete on all
// components when K > 1), re-optimizes each candidate with EM, and accepts
// the best-scoring candidate only if it improves the current message
// length. Candidates whose covariances turn singular are skipped, not
// fatal. Candidate evaluations within an iteration run concurrently on
// cfg.Workers goroutines.
func Search(y *mat.Dense, cfg Config) (*SearchResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	n, d := y.Dims()
	if n == 0 {
		return nil, errors.New("gmmmml: empty dataset")
	}
	if d < 2 {
		return nil, fmt.Errorf("gmmmml: data must have at least 2 dimensions, got %d", d)
	}
	if cfg.InitialMixture != nil && cfg.InitialMixture.Dims() != d {
		return nil, fmt.Errorf("gmmmml: initial mixture has %d dimensions, data has %d", cfg.InitialMixture.Dims(), d)
	}

	mix := cfg.InitialMixture
	if mix == nil {
		mix = initializeMixture(y, &cfg)
	} else {
		mix = mix.Clone()
	}

	cur, err := expectation(y, mix, &cfg)
	if err != nil {
		return nil, err
	}
	mix.Responsibilities = cur.resp
	logLikelihoods := cur.logLikelihoods
	best := cur.messageLength

	hist := NewSearchHistory()
	hist.Record(mix, logLikelihoods)

	outer := 0
	for {
		outer++
		k := mix.K()

		candidates := make([]candidate, 0, 3*k)
		for m := 0; m < k; m++ {
			candidates = append(candidates, candidate{operationSplit, m})
		}
		if k > 1 {
			for m := 0; m < k; m++ {
				candidates = append(candidates,
					candidate{operationMerge, m},
					candidate{operationDelete, m})
			}
		}

		results := evaluateCandidates(y, mix, candidates, &cfg)

		var bestCand *candidateResult
		for i := range results {
			r := &results[i]
			if r.err != nil {
				if errors.Is(r.err, ErrSingularCovariance) {
					cfg.debugf("skipping candidate", "op", string(r.op), "index", r.index, "err", r.err)
					continue
				}
				return nil, r.err
			}
			if bestCand == nil || r.result.MessageLength.Total < bestCand.result.MessageLength.Total {
				bestCand = r
			}
		}

		// History and the current mixture are only touched after the whole
		// iteration finishes, so partial candidates stay invisible to the
		// EM runs inside it.
		for i := range results {
			if results[i].err == nil {
				hist.Record(results[i].result.Mixture, results[i].result.LogLikelihoods)
			}
		}

		if bestCand == nil || bestCand.result.MessageLength.Total >= best.Total {
			break
		}

		mix = bestCand.result.Mixture
		logLikelihoods = bestCand.result.LogLikelihoods
		best = bestCand.result.MessageLength
		cfg.debugf("accepted perturbation",
			"op", string(bestCand.op), "index", bestCand.index,
			"K", mix.K(), "message_length", best.Total)
		emit(cfg.Observer, "model", map[string]any{
			"mean":   mix.Means,
			"cov":    mix.Covariances,
			"weight": mix.Weights,
		})

		if cfg.PredictiveStopping && shouldStopEarly(y, mix, logLikelihoods, best, hist, &cfg) {
			cfg.debugf("predictive stop", "K", mix.K())
			break
		}
	}

	return &SearchResult{
		Mixture:         mix,
		MessageLength:   best,
		LogLikelihoods:  logLikelihoods,
		History:         hist,
		OuterIterations: outer,
	}, nil
}

// shouldStopEarly forecasts the message lengths of the lookahead component
// counts and reports whether none of them is predicted to improve on the
// current message length.
func shouldStopEarly(y *mat.Dense, mix *Mixture, logLikelihoods []float64, current MessageLength, hist *SearchHistory, cfg *Config) bool {
	n, _ := y.Dims()
	targetK := make([]int, cfg.PredictiveLookahead)
	for i := range targetK {
		targetK[i] = mix.K() + i + 1
	}
	pI, ok := PredictMessageLength(targetK, n, mix, floats.Sum(logLikelihoods), current, hist, *cfg)
	if !ok {
		return false
	}
	for _, v := range pI {
		if v < current.Total {
			return false
		}
	}
	return true
}
