package gmmmml

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestResponsibilityMatrix_ColumnsSumToOne(t *testing.T) {
	y := twoClusterData(50, 7)
	means := mat.NewDense(2, 2, []float64{0, 0, 10, 10})
	covs := identityCovariances(2, 2)
	weights := []float64{0.5, 0.5}

	resp, ll, err := ResponsibilityMatrix(y, means, covs, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k, n := resp.Dims()
	if k != 2 || n != 100 {
		t.Fatalf("dims: got %dx%d, want 2x100", k, n)
	}
	if len(ll) != n {
		t.Fatalf("log-likelihood length: got %d, want %d", len(ll), n)
	}
	for i := 0; i < n; i++ {
		var sum float64
		for m := 0; m < k; m++ {
			r := resp.At(m, i)
			if r < 0 || r > 1 {
				t.Fatalf("responsibility (%d, %d) out of [0, 1]: %f", m, i, r)
			}
			sum += r
		}
		if !almostEqual(sum, 1, 1e-9) {
			t.Fatalf("column %d sums to %.12f, want 1", i, sum)
		}
	}
}

func TestResponsibilityMatrix_EquidistantPointFollowsWeights(t *testing.T) {
	// A point halfway between two identical components splits its
	// responsibility in proportion to the mixing weights.
	y := mat.NewDense(1, 2, []float64{2, 0})
	means := mat.NewDense(2, 2, []float64{0, 0, 4, 0})
	covs := identityCovariances(2, 2)
	weights := []float64{0.6, 0.4}

	resp, ll, err := ResponsibilityMatrix(y, means, covs, weights)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(resp.At(0, 0), 0.6, 1e-12) || !almostEqual(resp.At(1, 0), 0.4, 1e-12) {
		t.Errorf("responsibilities: got (%f, %f), want (0.6, 0.4)", resp.At(0, 0), resp.At(1, 0))
	}

	// Both densities equal log N((2,0) | mean, I) = -log(2*pi) - 2, and the
	// weights sum to one, so the log-sum-exp collapses to the density.
	want := -math.Log(2*math.Pi) - 2
	if !almostEqual(ll[0], want, 1e-12) {
		t.Errorf("log-likelihood: got %f, want %f", ll[0], want)
	}
}

func TestResponsibilityMatrix_SingleComponent(t *testing.T) {
	y := mat.NewDense(3, 2, []float64{0, 0, 1, 1, 2, 2})
	means := mat.NewDense(1, 2, []float64{1, 1})
	covs := identityCovariances(1, 2)

	resp, _, err := ResponsibilityMatrix(y, means, covs, []float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if resp.At(0, i) != 1 {
			t.Errorf("single-component responsibility at %d: got %f, want 1", i, resp.At(0, i))
		}
	}
}

func TestResponsibilityMatrix_SingularCovariance(t *testing.T) {
	y := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	means := mat.NewDense(1, 2, []float64{0, 0})
	covs := &Covariances{kind: CovarianceFull, full: []*mat.SymDense{
		mat.NewSymDense(2, []float64{1, 1, 1, 1}),
	}}

	_, _, err := ResponsibilityMatrix(y, means, covs, []float64{1})
	if !errors.Is(err, ErrSingularCovariance) {
		t.Errorf("got %v, want ErrSingularCovariance", err)
	}
}
