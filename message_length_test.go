package gmmmml

import (
	"math"
	"testing"
)

func TestMixtureMessageLength_SingleComponent(t *testing.T) {
	ml := MixtureMessageLength(1, 100, 2, -200, 0, nil, 0)

	if math.IsNaN(ml.Total) || math.IsInf(ml.Total, 0) {
		t.Fatalf("total is not finite: %f", ml.Total)
	}
	if ml.Total <= 0 {
		t.Errorf("total: got %f, want > 0", ml.Total)
	}

	// Data term with the default yerr: 200 - 2*100*log(0.001).
	wantData := 200 - 2*100*math.Log(1e-3)
	if !almostEqual(ml.Data, wantData, 1e-9) {
		t.Errorf("data term: got %f, want %f", ml.Data, wantData)
	}
	// K=1 with slogdetcov=0 contributes nothing from covariances, and a
	// single weight is fixed at 1 so the weight term vanishes.
	if ml.Covariances != 0 {
		t.Errorf("covariance term: got %f, want 0", ml.Covariances)
	}
	if ml.Weights != 0 {
		t.Errorf("weight term: got %f, want 0", ml.Weights)
	}

	sum := ml.Mixtures + ml.Parameters + ml.Data + ml.Covariances + ml.Weights
	if !almostEqual(ml.Total, sum, 1e-9) {
		t.Errorf("total %f does not equal the sum of terms %f", ml.Total, sum)
	}
}

func TestMixtureMessageLength_UniformWeightsMatchNilWeights(t *testing.T) {
	// nil weights substitute the uniform bound -K*log(K), which is exactly
	// sum(log w) for uniform weights.
	uniform := []float64{0.25, 0.25, 0.25, 0.25}
	withW := MixtureMessageLength(4, 500, 3, -1000, -2, uniform, 1e-3)
	nilW := MixtureMessageLength(4, 500, 3, -1000, -2, nil, 1e-3)

	if !almostEqual(withW.Total, nilW.Total, 1e-9) {
		t.Errorf("uniform weights: got %f, nil weights: got %f", withW.Total, nilW.Total)
	}
}

func TestMixtureMessageLength_UnevenWeightsCostMore(t *testing.T) {
	uneven := []float64{0.9, 0.05, 0.05}
	uniform := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}

	a := MixtureMessageLength(3, 500, 2, -1000, 0, uneven, 1e-3)
	b := MixtureMessageLength(3, 500, 2, -1000, 0, uniform, 1e-3)
	if a.Weights <= b.Weights {
		t.Errorf("uneven weight term %f should exceed uniform %f", a.Weights, b.Weights)
	}
}

func TestMixtureMessageLength_NonPositiveYerrDefaults(t *testing.T) {
	a := MixtureMessageLength(2, 100, 2, -200, 0, nil, 0)
	b := MixtureMessageLength(2, 100, 2, -200, 0, nil, 1e-3)
	if a.Total != b.Total {
		t.Errorf("yerr=0 should default to 1e-3: got %f and %f", a.Total, b.Total)
	}
}

func TestSumLogWeightBounds(t *testing.T) {
	lower, upper := sumLogWeightBounds(2, 10)

	if want := -2 * math.Log(2); !almostEqual(upper, want, 1e-12) {
		t.Errorf("upper: got %f, want %f", upper, want)
	}
	if want := math.Log(9) - 2*math.Log(10); !almostEqual(lower, want, 1e-12) {
		t.Errorf("lower: got %f, want %f", lower, want)
	}
	if lower >= upper {
		t.Errorf("lower %f must be below upper %f", lower, upper)
	}
}

func TestTotalParameters(t *testing.T) {
	// K=1, D=2: one mean pair plus three covariance entries, no free weight.
	if got := totalParameters(1, 2); got != 5 {
		t.Errorf("Q(1, 2): got %f, want 5", got)
	}
	// K=3, D=2: 3*5 parameters plus 2 free weights.
	if got := totalParameters(3, 2); got != 17 {
		t.Errorf("Q(3, 2): got %f, want 17", got)
	}
}

func TestMixtureMessageLengths_MatchesScalarCalls(t *testing.T) {
	ks := []int{1, 2, 3}
	lls := []float64{-200, -150, -140}
	sldcs := []float64{0, -1, -2.5}

	got, err := MixtureMessageLengths(ks, 100, 2, lls, sldcs, nil, 1e-3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("length: got %d, want 3", len(got))
	}
	for i, k := range ks {
		want := MixtureMessageLength(k, 100, 2, lls[i], sldcs[i], nil, 1e-3)
		if !almostEqual(got[i].Total, want.Total, 1e-12) {
			t.Errorf("K=%d: got %f, want %f", k, got[i].Total, want.Total)
		}
	}
}

func TestMixtureMessageLengths_PerCandidateWeights(t *testing.T) {
	ks := []int{1, 2}
	lls := []float64{-200, -150}
	sldcs := []float64{0, -1}
	weights := [][]float64{nil, {0.7, 0.3}}

	got, err := MixtureMessageLengths(ks, 100, 2, lls, sldcs, weights, 1e-3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := MixtureMessageLength(2, 100, 2, -150, -1, []float64{0.7, 0.3}, 1e-3)
	if !almostEqual(got[1].Total, want.Total, 1e-12) {
		t.Errorf("got %f, want %f", got[1].Total, want.Total)
	}
}

func TestMixtureMessageLengths_LengthMismatches(t *testing.T) {
	tests := []struct {
		name    string
		ks      []int
		lls     []float64
		sldcs   []float64
		weights [][]float64
	}{
		{"log-likelihoods", []int{1, 2}, []float64{-1}, []float64{0, 0}, nil},
		{"log-determinants", []int{1, 2}, []float64{-1, -2}, []float64{0}, nil},
		{"weight vectors", []int{1, 2}, []float64{-1, -2}, []float64{0, 0}, [][]float64{nil}},
		{"weight entries", []int{2}, []float64{-1}, []float64{0}, [][]float64{{0.5, 0.3, 0.2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := MixtureMessageLengths(tt.ks, 10, 2, tt.lls, tt.sldcs, tt.weights, 1e-3); err == nil {
				t.Error("expected error")
			}
		})
	}
}
