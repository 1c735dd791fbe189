package gmmmml

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRemoveComponent_RenormalizesWeights(t *testing.T) {
	mix := &Mixture{
		Means:       mat.NewDense(3, 2, []float64{0, 0, 5, 5, 10, 10}),
		Covariances: identityCovariances(3, 2),
		Weights:     []float64{0.5, 0.2, 0.3},
		Responsibilities: mat.NewDense(3, 4, []float64{
			1, 0.5, 0, 0,
			0, 0.5, 0.5, 0,
			0, 0, 0.5, 1,
		}),
	}

	out := removeComponent(mix, 1)
	require.Equal(t, 2, out.K())

	// Remaining weights scale by 1/(1 - 0.2).
	require.InDelta(t, 0.5/0.8, out.Weights[0], 1e-12)
	require.InDelta(t, 0.3/0.8, out.Weights[1], 1e-12)

	require.Equal(t, 0.0, out.Means.At(0, 0))
	require.Equal(t, 10.0, out.Means.At(1, 0))
	require.Equal(t, 2, out.Covariances.K())
}

func TestRemoveComponent_ZeroMassComponentLeavesResponsibilitiesIntact(t *testing.T) {
	// Deleting a component nothing is assigned to is a no-op on the
	// surviving responsibility rows.
	mix := &Mixture{
		Means:       mat.NewDense(3, 2, []float64{0, 0, 5, 5, 10, 10}),
		Covariances: identityCovariances(3, 2),
		Weights:     []float64{0.5, 0, 0.5},
		Responsibilities: mat.NewDense(3, 3, []float64{
			1, 0.4, 0,
			0, 0, 0,
			0, 0.6, 1,
		}),
	}

	out := removeComponent(mix, 1)
	require.Equal(t, 2, out.K())
	require.InDelta(t, 0.5, out.Weights[0], 1e-12)
	require.InDelta(t, 0.5, out.Weights[1], 1e-12)
	for i := 0; i < 3; i++ {
		require.InDelta(t, mix.Responsibilities.At(0, i), out.Responsibilities.At(0, i), 1e-12)
		require.InDelta(t, mix.Responsibilities.At(2, i), out.Responsibilities.At(1, i), 1e-12)
	}
}

func TestRemoveComponent_FullyOwnedPointIsZeroed(t *testing.T) {
	// Point 0 belongs entirely to the deleted component; its 0/0
	// renormalization must come out as 0, not NaN.
	mix := &Mixture{
		Means:       mat.NewDense(2, 2, []float64{0, 0, 10, 10}),
		Covariances: identityCovariances(2, 2),
		Weights:     []float64{0.5, 0.5},
		Responsibilities: mat.NewDense(2, 2, []float64{
			1, 0.5,
			0, 0.5,
		}),
	}

	out := removeComponent(mix, 0)
	require.Equal(t, 0.0, out.Responsibilities.At(0, 0))
	require.InDelta(t, 1.0, out.Responsibilities.At(0, 1), 1e-12)
}

func TestDeleteComponent_MatchesDirectSingleComponentFit(t *testing.T) {
	y := twoClusterData(150, 31)

	start := &Mixture{
		Means:       mat.NewDense(2, 2, []float64{1, 1, 9, 9}),
		Covariances: identityCovariances(2, 2),
		Weights:     []float64{0.5, 0.5},
	}
	fit, err := ExpectationMaximization(y, start, DefaultConfig())
	require.NoError(t, err)

	deleted, err := DeleteComponent(y, fit.Mixture, 1, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 1, deleted.Mixture.K())

	cfg := DefaultConfig()
	applyDefaults(&cfg)
	direct, err := ExpectationMaximization(y, initializeMixture(y, &cfg), DefaultConfig())
	require.NoError(t, err)
	require.InDelta(t, direct.MessageLength.Total, deleted.MessageLength.Total, 1e-6)
}

func TestDeleteComponent_Errors(t *testing.T) {
	y := twoClusterData(20, 32)
	cfg := DefaultConfig()
	applyDefaults(&cfg)
	single := initializeMixture(y, &cfg)

	_, err := DeleteComponent(y, single, 0, DefaultConfig())
	require.Error(t, err, "the only component cannot be deleted")

	start := &Mixture{
		Means:       mat.NewDense(2, 2, []float64{1, 1, 9, 9}),
		Covariances: identityCovariances(2, 2),
		Weights:     []float64{0.5, 0.5},
	}
	fit, err := ExpectationMaximization(y, start, DefaultConfig())
	require.NoError(t, err)

	_, err = DeleteComponent(y, fit.Mixture, -1, DefaultConfig())
	require.Error(t, err)
	_, err = DeleteComponent(y, fit.Mixture, 2, DefaultConfig())
	require.Error(t, err)
}
