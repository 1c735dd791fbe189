package gmmmml

import "gonum.org/v1/gonum/mat"

// initializeMixture builds the single-component starting mixture: the
// global mean and covariance of the dataset with unit weight and unit
// responsibility for every point. External initializations (for example
// from k-means++) come in through Config.InitialMixture instead.
func initializeMixture(y *mat.Dense, cfg *Config) *Mixture {
	n, d := y.Dims()

	means := mat.NewDense(1, d, nil)
	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += y.At(i, j)
		}
		means.Set(0, j, sum/float64(n))
	}

	resp := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		resp.Set(0, i, 1)
	}

	ops := cfg.CovarianceType.ops()
	covs := ops.estimate(y, resp, means, cfg.CovarianceRegularization)

	mix := &Mixture{
		Means:            means,
		Covariances:      covs,
		Weights:          []float64{1},
		Responsibilities: resp,
	}
	emit(cfg.Observer, "model", map[string]any{
		"mean":   mix.Means,
		"cov":    mix.Covariances,
		"weight": mix.Weights,
	})
	return mix
}
