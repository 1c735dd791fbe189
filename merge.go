package gmmmml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GaussianKLDivergence returns the Kullback-Leibler divergence, in nats,
// from the multivariate normal (muA, covA) to the multivariate normal
// (muB, covB). The divergence is directional: swapping the arguments gives
// a different value. Returns +Inf if either covariance is not invertible.
func GaussianKLDivergence(muA []float64, covA *mat.SymDense, muB []float64, covB *mat.SymDense) float64 {
	d := len(muA)

	var caInv, cbInv mat.Dense
	if err := caInv.Inverse(covA); err != nil {
		return math.Inf(1)
	}
	if err := cbInv.Inverse(covB); err != nil {
		return math.Inf(1)
	}

	var prod mat.Dense
	prod.Mul(&caInv, covB)
	trace := mat.Trace(&prod)

	offset := mat.NewVecDense(d, nil)
	for j := 0; j < d; j++ {
		offset.SetVec(j, muB[j]-muA[j])
	}
	var tmp mat.VecDense
	tmp.MulVec(&cbInv, offset)
	quad := mat.Dot(offset, &tmp)

	logDetRatio := math.Log(mat.Det(covB) / mat.Det(covA))

	return 0.5 * (trace + quad - float64(d) + logDetRatio)
}

// MergeComponent combines component index with the component of minimum
// Kullback-Leibler divergence from it, installs the merged component at the
// lower of the two indices, re-optimizes with EM and returns the scored
// (K-1)-component candidate. The input mixture is not mutated.
func MergeComponent(y *mat.Dense, mix *Mixture, index int, cfg Config) (*PerturbationResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if index < 0 || index >= mix.K() {
		return nil, fmt.Errorf("gmmmml: merge index %d out of range for K=%d", index, mix.K())
	}
	if mix.K() < 2 {
		return nil, fmt.Errorf("gmmmml: cannot merge a single-component mixture")
	}
	return mergeComponent(y, mix, index, &cfg)
}

func mergeComponent(y *mat.Dense, mix *Mixture, index int, cfg *Config) (*PerturbationResult, error) {
	n, d := y.Dims()
	k := mix.K()

	// Closest sibling by directional KL, with index as the reference.
	muA := mix.Means.RawRowView(index)
	covA := mix.Covariances.Component(index)
	partner := -1
	minKL := math.Inf(1)
	for m := 0; m < k; m++ {
		if m == index {
			continue
		}
		kl := GaussianKLDivergence(muA, covA, mix.Means.RawRowView(m), mix.Covariances.Component(m))
		if kl < minKL {
			minKL = kl
			partner = m
		}
	}
	if partner < 0 {
		return nil, fmt.Errorf("gmmmml: no finite KL divergence partner for component %d", index)
	}
	cfg.debugf("merging components", "index", index, "partner", partner, "K", k)

	mergedWeight := mix.Weights[index] + mix.Weights[partner]
	mergedResp := make([]float64, n)
	for i := 0; i < n; i++ {
		mergedResp[i] = mix.Responsibilities.At(index, i) + mix.Responsibilities.At(partner, i)
	}
	membership := floats.Sum(mergedResp)

	mergedMean := mat.NewDense(1, d, nil)
	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += mergedResp[i] * y.At(i, j)
		}
		mergedMean.Set(0, j, sum/membership)
	}

	ops := cfg.CovarianceType.ops()
	mergedCov := ops.estimate(y, mat.NewDense(1, n, mergedResp), mergedMean, cfg.CovarianceRegularization)

	keep := min(index, partner)
	drop := max(index, partner)

	weights := make([]float64, 0, k-1)
	for m := 0; m < k; m++ {
		if m != drop {
			weights = append(weights, mix.Weights[m])
		}
	}
	weights[keep] = mergedWeight

	means := mat.NewDense(k-1, d, nil)
	row := 0
	for m := 0; m < k; m++ {
		if m == drop {
			continue
		}
		for j := 0; j < d; j++ {
			means.Set(row, j, mix.Means.At(m, j))
		}
		row++
	}
	for j := 0; j < d; j++ {
		means.Set(keep, j, mergedMean.At(0, j))
	}

	covs := mix.Covariances.withComponentRemoved(drop)
	covs.copyComponent(keep, mergedCov, 0)

	resp := mat.NewDense(k-1, n, nil)
	row = 0
	for m := 0; m < k; m++ {
		if m == drop {
			continue
		}
		for i := 0; i < n; i++ {
			resp.Set(row, i, mix.Responsibilities.At(m, i))
		}
		row++
	}
	for i := 0; i < n; i++ {
		resp.Set(keep, i, mergedResp[i])
	}

	candidate := &Mixture{
		Means:            means,
		Covariances:      covs,
		Weights:          weights,
		Responsibilities: resp,
	}
	return expectationMaximization(y, candidate, nil, cfg)
}
