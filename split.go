package gmmmml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SplitComponent decomposes component index into two children placed one
// standard deviation either side of the parent mean along the covariance
// matrix's dominant eigenvector, then re-optimizes with EM and returns the
// scored (K+1)-component candidate. The input mixture is not mutated.
//
// When the mixture has more than one component the two children are spliced
// into the full mixture (child A replaces the parent, child B is appended)
// and EM runs over all K+1 components, since splitting one component
// changes the optimal responsibilities of all others. A single-component
// mixture optimizes the 2-child system directly.
func SplitComponent(y *mat.Dense, mix *Mixture, index int, cfg Config) (*PerturbationResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if index < 0 || index >= mix.K() {
		return nil, fmt.Errorf("gmmmml: split index %d out of range for K=%d", index, mix.K())
	}
	return splitComponent(y, mix, index, &cfg)
}

func splitComponent(y *mat.Dense, mix *Mixture, index int, cfg *Config) (*PerturbationResult, error) {
	n, d := y.Dims()
	k := mix.K()
	cfg.debugf("splitting component", "index", index, "K", k)

	// Dominant direction of the parent covariance.
	var svd mat.SVD
	if ok := svd.Factorize(mix.Covariances.Component(index), mat.SVDFull); !ok {
		return nil, ErrSingularCovariance
	}
	s := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	scale := math.Sqrt(s[0])
	childMeans := mat.NewDense(2, d, nil)
	for j := 0; j < d; j++ {
		mu := mix.Means.At(index, j)
		step := v.At(j, 0) * scale
		childMeans.Set(0, j, mu-step)
		childMeans.Set(1, j, mu+step)
		if math.IsNaN(childMeans.At(0, j)) || math.IsNaN(childMeans.At(1, j)) {
			panic("gmmmml: non-finite child mean in split")
		}
	}

	// Hard nearest-mean assignment seeds the child responsibilities.
	childResp := mat.NewDense(2, n, nil)
	for i := 0; i < n; i++ {
		var d0, d1 float64
		for j := 0; j < d; j++ {
			e0 := y.At(i, j) - childMeans.At(0, j)
			e1 := y.At(i, j) - childMeans.At(1, j)
			d0 += e0 * e0
			d1 += e1 * e1
		}
		if d0 <= d1 {
			childResp.Set(0, i, 1)
		} else {
			childResp.Set(1, i, 1)
		}
	}

	ops := cfg.CovarianceType.ops()
	childCovs := ops.estimate(y, childResp, childMeans, cfg.CovarianceRegularization)

	m0 := floats.Sum(childResp.RawRowView(0))
	m1 := floats.Sum(childResp.RawRowView(1))
	childWeights := []float64{m0 / (m0 + m1), m1 / (m0 + m1)}

	parentWeight := mix.Weights[index]
	parentResp := append([]float64(nil), mix.Responsibilities.RawRowView(index)...)

	if k == 1 {
		// No siblings to re-balance: optimize the 2-child system directly,
		// with the parent responsibility constraining the children's mass.
		child := &Mixture{
			Means:            childMeans,
			Covariances:      childCovs,
			Weights:          childWeights,
			Responsibilities: childResp,
		}
		return expectationMaximization(y, child, parentResp, cfg)
	}

	// Splice the children into the full (K+1)-component mixture: child A
	// takes the parent's slot, child B goes at the end.
	weights := append(append([]float64(nil), mix.Weights...), parentWeight*childWeights[1])
	weights[index] = parentWeight * childWeights[0]

	resp := mat.NewDense(k+1, n, nil)
	for m := 0; m < k; m++ {
		for i := 0; i < n; i++ {
			resp.Set(m, i, mix.Responsibilities.At(m, i))
		}
	}
	for i := 0; i < n; i++ {
		resp.Set(index, i, parentResp[i]*childResp.At(0, i))
		resp.Set(k, i, parentResp[i]*childResp.At(1, i))
	}

	means := mat.NewDense(k+1, d, nil)
	for m := 0; m < k; m++ {
		for j := 0; j < d; j++ {
			means.Set(m, j, mix.Means.At(m, j))
		}
	}
	for j := 0; j < d; j++ {
		means.Set(index, j, childMeans.At(0, j))
		means.Set(k, j, childMeans.At(1, j))
	}

	covs := mix.Covariances.withComponentAppended(childCovs, 1)
	covs.copyComponent(index, childCovs, 0)

	candidate := &Mixture{
		Means:            means,
		Covariances:      covs,
		Weights:          weights,
		Responsibilities: resp,
	}
	return expectationMaximization(y, candidate, nil, cfg)
}
