package gmmmml

import (
	"fmt"
	"math"
)

// MessageLength is the minimum-message-length cost of a candidate mixture,
// in nats, itemized into its five additive contributions. Reports are
// created fresh on every evaluation and compared only by Total.
type MessageLength struct {
	// Total is the sum of the five terms below.
	Total float64

	// Mixtures encodes the number of components (model-class term).
	Mixtures float64
	// Parameters is the Fisher-information lattice-quantization term for
	// the free parameters of the mixture.
	Parameters float64
	// Data is the negative log-likelihood adjusted for the assumed
	// per-point measurement precision.
	Data float64
	// Covariances penalizes the covariance determinants.
	Covariances float64
	// Weights penalizes uneven or degenerate weight allocation.
	Weights float64
}

// totalParameters returns the number Q of free parameters of a K-component
// mixture with full covariance structure in D dimensions.
func totalParameters(k, d float64) float64 {
	return 0.5*d*(d+3)*k + k - 1
}

// sumLogWeightBounds returns the analytic lower and upper bounds of
// sum(log w) for a K-component multinomial weight vector over N points.
// The upper bound is attained by uniform weights; the lower bound by
// locking all but one data point's worth of weight into a single component.
func sumLogWeightBounds(k float64, n int) (lower, upper float64) {
	fn := float64(n)
	upper = -k * math.Log(k)
	lower = math.Log(fn+1-k) - k*math.Log(fn)
	return lower, upper
}

// MixtureMessageLength estimates the message length of a K-component
// Gaussian mixture over N points in D dimensions, given the summed
// log-likelihood and the summed log-determinant of the component
// covariance matrices.
//
// If weights is nil, the analytic upper bound -K*log(K) (uniform weights)
// is substituted for sum(log w). yerr is the assumed per-point measurement
// precision; values <= 0 default to 0.001.
//
// The five terms are additive and independently interpretable, which the
// predictive machinery exploits to extrapolate each term separately. Only
// D >= 2 is supported.
func MixtureMessageLength(k, n, d int, logLikelihood, sumLogDetCov float64, weights []float64, yerr float64) MessageLength {
	if yerr <= 0 {
		yerr = 1e-3
	}
	fk := float64(k)
	fn := float64(n)
	fd := float64(d)

	var slogw float64
	if weights == nil {
		slogw = -fk * math.Log(fk)
	} else {
		for _, w := range weights {
			slogw += math.Log(w)
		}
	}

	q := totalParameters(fk, fd)
	lgammaK, _ := math.Lgamma(fk)

	ml := MessageLength{
		Mixtures: fk*math.Ln2*(1-fd/2) + lgammaK +
			0.25*(2*(fk-1)+fk*fd*(fd+3))*math.Log(fn),
		Parameters:  0.5*math.Log(q*math.Pi) - 0.5*q*math.Log(2*math.Pi),
		Data:        -logLikelihood - fd*fn*math.Log(yerr),
		Covariances: -0.5 * (fd + 2) * sumLogDetCov,
		Weights:     (0.25*fd*(fd+3) - 0.5) * slogw,
	}
	ml.Total = ml.Mixtures + ml.Parameters + ml.Data + ml.Covariances + ml.Weights
	return ml
}

// MixtureMessageLengths scores many candidate component counts at once.
// ks, logLikelihoods and sumLogDetCovs must have equal lengths; weights may
// be nil (uniform-weight bound for every K) or a per-candidate weight
// vector slice whose entries may individually be nil. The result at index i
// equals a scalar MixtureMessageLength call with the i-th arguments.
func MixtureMessageLengths(ks []int, n, d int, logLikelihoods, sumLogDetCovs []float64, weights [][]float64, yerr float64) ([]MessageLength, error) {
	if len(ks) != len(logLikelihoods) {
		return nil, fmt.Errorf("gmmmml: got %d component counts but %d log-likelihoods", len(ks), len(logLikelihoods))
	}
	if len(ks) != len(sumLogDetCovs) {
		return nil, fmt.Errorf("gmmmml: got %d component counts but %d covariance log-determinants", len(ks), len(sumLogDetCovs))
	}
	if weights != nil && len(weights) != len(ks) {
		return nil, fmt.Errorf("gmmmml: got %d component counts but %d weight vectors", len(ks), len(weights))
	}
	out := make([]MessageLength, len(ks))
	for i, k := range ks {
		var w []float64
		if weights != nil {
			w = weights[i]
			if w != nil && len(w) != k {
				return nil, fmt.Errorf("gmmmml: weight vector %d has %d entries for K=%d", i, len(w), k)
			}
		}
		out[i] = MixtureMessageLength(k, n, d, logLikelihoods[i], sumLogDetCovs[i], w, yerr)
	}
	return out, nil
}
