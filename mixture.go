package gmmmml

import "gonum.org/v1/gonum/mat"

// Mixture is the search state: the parameters and responsibilities of a
// K-component Gaussian mixture over an N-point, D-dimensional dataset.
// Structural operators receive a borrowed Mixture and always return a brand
// new one; they never mutate their input.
type Mixture struct {
	// Means is the K×D matrix of component means.
	Means *mat.Dense

	// Covariances holds the component covariance estimates.
	Covariances *Covariances

	// Weights are the relative mixing weights. Non-negative, sum to 1.
	Weights []float64

	// Responsibilities is the K×N posterior membership matrix: entry (m, i)
	// is the probability that point i was generated by component m. Each
	// column sums to 1. May be nil before the first expectation step.
	Responsibilities *mat.Dense
}

// K returns the number of mixture components.
func (m *Mixture) K() int { return len(m.Weights) }

// Dims returns the data dimensionality.
func (m *Mixture) Dims() int {
	_, d := m.Means.Dims()
	return d
}

// Clone returns a deep copy of the mixture.
func (m *Mixture) Clone() *Mixture {
	out := &Mixture{
		Means:       mat.DenseCopyOf(m.Means),
		Covariances: m.Covariances.Clone(),
		Weights:     append([]float64(nil), m.Weights...),
	}
	if m.Responsibilities != nil {
		out.Responsibilities = mat.DenseCopyOf(m.Responsibilities)
	}
	return out
}

// EffectiveMemberships returns the per-component sums of responsibilities:
// the soft count of data points owned by each component.
func (m *Mixture) EffectiveMemberships() []float64 {
	k, n := m.Responsibilities.Dims()
	out := make([]float64, k)
	for c := 0; c < k; c++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += m.Responsibilities.At(c, i)
		}
		out[c] = sum
	}
	return out
}
