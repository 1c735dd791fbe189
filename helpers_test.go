package gmmmml

import (
	"math"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// identitySym returns the d-dimensional identity as a SymDense.
func identitySym(d int) *mat.SymDense {
	s := mat.NewSymDense(d, nil)
	for j := 0; j < d; j++ {
		s.SetSym(j, j, 1)
	}
	return s
}

// identityCovariances builds k unit covariance matrices in d dimensions.
func identityCovariances(k, d int) *Covariances {
	full := make([]*mat.SymDense, k)
	for m := range full {
		full[m] = identitySym(d)
	}
	return &Covariances{kind: CovarianceFull, full: full}
}

// twoClusterData draws nPer points from each of two unit-covariance 2-D
// Gaussians centered at (0, 0) and (10, 10).
func twoClusterData(nPer int, seed uint64) *mat.Dense {
	src := rand.NewSource(seed)
	normA, okA := distmv.NewNormal([]float64{0, 0}, identitySym(2), src)
	normB, okB := distmv.NewNormal([]float64{10, 10}, identitySym(2), src)
	if !okA || !okB {
		panic("unit covariance rejected")
	}

	y := mat.NewDense(2*nPer, 2, nil)
	buf := make([]float64, 2)
	for i := 0; i < nPer; i++ {
		y.SetRow(i, normA.Rand(buf))
	}
	for i := nPer; i < 2*nPer; i++ {
		y.SetRow(i, normB.Rand(buf))
	}
	return y
}

type observedEvent struct {
	name    string
	payload map[string]any
}

// recordingObserver captures every emitted event. Safe for concurrent use.
type recordingObserver struct {
	mu     sync.Mutex
	events []observedEvent
}

func (o *recordingObserver) Emit(name string, payload map[string]any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, observedEvent{name: name, payload: payload})
}

func (o *recordingObserver) named(name string) []observedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []observedEvent
	for _, e := range o.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}
