package gmmmml

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// HistoryEntry records the state of one evaluated mixture.
type HistoryEntry struct {
	// K is the component count.
	K int
	// DetCovariances is the determinant of each component covariance.
	DetCovariances []float64
	// Weights is the mixing weight vector.
	Weights []float64
	// SumLogWeights is sum(log w).
	SumLogWeights float64
	// SumLogLikelihood is the summed per-point log-likelihood.
	SumLogLikelihood float64
}

// SearchHistory is the append-only record of every mixture evaluated during
// a search session, including rejected perturbation candidates. It feeds
// the predictive extrapolation of message-length terms for untried
// component counts. Entries are never pruned or retroactively mutated.
//
// The history also carries the warm-start parameters of the prediction
// fits between outer iterations.
type SearchHistory struct {
	entries []HistoryEntry

	logLikelihoodParams []float64
	logDetCovParams     []float64
}

// NewSearchHistory returns an empty history.
func NewSearchHistory() *SearchHistory {
	return &SearchHistory{}
}

// Record appends the state of an evaluated mixture.
func (h *SearchHistory) Record(mix *Mixture, logLikelihoods []float64) {
	weights := append([]float64(nil), mix.Weights...)
	var slogw float64
	for _, w := range weights {
		slogw += math.Log(w)
	}
	h.entries = append(h.entries, HistoryEntry{
		K:                mix.K(),
		DetCovariances:   mix.Covariances.Dets(),
		Weights:          weights,
		SumLogWeights:    slogw,
		SumLogLikelihood: floats.Sum(logLikelihoods),
	})
}

// Len returns the number of recorded entries.
func (h *SearchHistory) Len() int { return len(h.entries) }

// Entries returns the recorded entries in evaluation order. The returned
// slice is shared with the history and must not be modified.
func (h *SearchHistory) Entries() []HistoryEntry { return h.entries }

// DistinctK returns the number of distinct component counts observed.
func (h *SearchHistory) DistinctK() int {
	seen := make(map[int]struct{}, len(h.entries))
	for _, e := range h.entries {
		seen[e.K] = struct{}{}
	}
	return len(seen)
}

// groupOver aggregates a per-entry value over all entries sharing the same
// K. Returns the distinct K values in ascending order and the aggregate of
// each group.
func (h *SearchHistory) groupOver(value func(HistoryEntry) float64, agg func([]float64) float64) (ks, vals []float64) {
	groups := make(map[int][]float64)
	for _, e := range h.entries {
		groups[e.K] = append(groups[e.K], value(e))
	}
	ks = make([]float64, 0, len(groups))
	for k := range groups {
		ks = append(ks, float64(k))
	}
	sort.Float64s(ks)
	vals = make([]float64, len(ks))
	for i, k := range ks {
		vals[i] = agg(groups[int(k)])
	}
	return ks, vals
}
