package gmmmml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ResponsibilityMatrix computes the K×N posterior membership matrix and the
// per-point log-likelihood of the data under the given mixture parameters.
//
// Entry (m, i) of the returned matrix is the conditional probability that
// point i belongs to component m; each column sums to 1. The log-likelihood
// is obtained for free from the log-sum-exp reduction over components.
//
// Returns ErrSingularCovariance if any component covariance cannot be
// factorized.
func ResponsibilityMatrix(y *mat.Dense, means *mat.Dense, covs *Covariances, weights []float64) (*mat.Dense, []float64, error) {
	ops := covs.Kind().ops()
	prec, err := ops.precisions(covs)
	if err != nil {
		return nil, nil, err
	}

	n, _ := y.Dims()
	k := len(weights)

	// weighted log prob: log w_m + log N(y_i | mu_m, C_m), laid out N×K so
	// the log-sum-exp runs over contiguous rows.
	wlp := ops.logProb(y, means, prec)
	for m := 0; m < k; m++ {
		lw := math.Log(weights[m])
		for i := 0; i < n; i++ {
			wlp.Set(i, m, wlp.At(i, m)+lw)
		}
	}

	logLikelihood := make([]float64, n)
	resp := mat.NewDense(k, n, nil)
	for i := 0; i < n; i++ {
		row := wlp.RawRowView(i)
		ll := floats.LogSumExp(row)
		logLikelihood[i] = ll
		for m := 0; m < k; m++ {
			resp.Set(m, i, math.Exp(row[m]-ll))
		}
	}
	return resp, logLikelihood, nil
}
