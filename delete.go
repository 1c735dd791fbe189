package gmmmml

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DeleteComponent removes component index from the mixture, renormalizes
// the remaining weights and responsibilities by the deleted component's
// share, re-optimizes with EM and returns the scored (K-1)-component
// candidate. The input mixture is not mutated.
//
// A point owned entirely by the deleted component yields a 0/0
// renormalization; such entries are zeroed and the following E step
// reassigns the point.
func DeleteComponent(y *mat.Dense, mix *Mixture, index int, cfg Config) (*PerturbationResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if index < 0 || index >= mix.K() {
		return nil, fmt.Errorf("gmmmml: delete index %d out of range for K=%d", index, mix.K())
	}
	if mix.K() < 2 {
		return nil, fmt.Errorf("gmmmml: cannot delete the only component")
	}
	return deleteComponent(y, mix, index, &cfg)
}

func deleteComponent(y *mat.Dense, mix *Mixture, index int, cfg *Config) (*PerturbationResult, error) {
	cfg.debugf("deleting component", "index", index, "K", mix.K())
	return expectationMaximization(y, removeComponent(mix, index), nil, cfg)
}

// removeComponent builds the (K-1)-component mixture left after deleting
// component index: remaining weights scaled by 1/(1-w), remaining
// responsibility columns scaled by 1/(1-r), both clipped to [0,1] with
// non-finite ratios zeroed.
func removeComponent(mix *Mixture, index int) *Mixture {
	k, n := mix.Responsibilities.Dims()
	d := mix.Dims()

	parentWeight := mix.Weights[index]
	parentResp := mix.Responsibilities.RawRowView(index)

	clip01 := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return math.Min(1, math.Max(0, v))
	}

	weights := make([]float64, 0, k-1)
	for m := 0; m < k; m++ {
		if m != index {
			weights = append(weights, clip01(mix.Weights[m]/(1-parentWeight)))
		}
	}

	resp := mat.NewDense(k-1, n, nil)
	row := 0
	for m := 0; m < k; m++ {
		if m == index {
			continue
		}
		for i := 0; i < n; i++ {
			resp.Set(row, i, clip01(mix.Responsibilities.At(m, i)/(1-parentResp[i])))
		}
		row++
	}

	means := mat.NewDense(k-1, d, nil)
	row = 0
	for m := 0; m < k; m++ {
		if m == index {
			continue
		}
		for j := 0; j < d; j++ {
			means.Set(row, j, mix.Means.At(m, j))
		}
		row++
	}

	return &Mixture{
		Means:            means,
		Covariances:      mix.Covariances.withComponentRemoved(index),
		Weights:          weights,
		Responsibilities: resp,
	}
}
