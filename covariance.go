package gmmmml

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Covariances holds the per-component covariance estimates of a mixture.
// The storage depends on the covariance structure: full keeps one symmetric
// D×D matrix per component, diag keeps a K×D matrix of per-dimension
// variances.
type Covariances struct {
	kind CovarianceType
	full []*mat.SymDense
	diag *mat.Dense
}

// Kind returns the covariance structure.
func (c *Covariances) Kind() CovarianceType { return c.kind }

// K returns the number of components.
func (c *Covariances) K() int {
	if c.kind == CovarianceDiag {
		k, _ := c.diag.Dims()
		return k
	}
	return len(c.full)
}

// Dims returns the data dimensionality D.
func (c *Covariances) Dims() int {
	if c.kind == CovarianceDiag {
		_, d := c.diag.Dims()
		return d
	}
	return c.full[0].SymmetricDim()
}

// Component materializes the covariance matrix of component index as a
// symmetric D×D matrix. The returned matrix is a copy; mutating it does not
// affect c. Diagonal structures are expanded with zero off-diagonals.
func (c *Covariances) Component(index int) *mat.SymDense {
	d := c.Dims()
	s := mat.NewSymDense(d, nil)
	if c.kind == CovarianceDiag {
		for j := 0; j < d; j++ {
			s.SetSym(j, j, c.diag.At(index, j))
		}
		return s
	}
	s.CopySym(c.full[index])
	return s
}

// Dets returns the determinant of each component's covariance matrix.
func (c *Covariances) Dets() []float64 {
	k := c.K()
	out := make([]float64, k)
	for m := 0; m < k; m++ {
		if c.kind == CovarianceDiag {
			det := 1.0
			for j := 0; j < c.Dims(); j++ {
				det *= c.diag.At(m, j)
			}
			out[m] = det
		} else {
			out[m] = mat.Det(c.full[m])
		}
	}
	return out
}

// SumLogDet returns the sum over components of the log-determinant of the
// covariance matrices.
func (c *Covariances) SumLogDet() float64 {
	var sum float64
	for _, det := range c.Dets() {
		sum += math.Log(det)
	}
	return sum
}

// Clone returns a deep copy of c.
func (c *Covariances) Clone() *Covariances {
	out := &Covariances{kind: c.kind}
	if c.kind == CovarianceDiag {
		out.diag = mat.DenseCopyOf(c.diag)
		return out
	}
	out.full = make([]*mat.SymDense, len(c.full))
	for m, s := range c.full {
		cp := mat.NewSymDense(s.SymmetricDim(), nil)
		cp.CopySym(s)
		out.full[m] = cp
	}
	return out
}

// withComponentRemoved returns a copy of c without component index.
func (c *Covariances) withComponentRemoved(index int) *Covariances {
	k, d := c.K(), c.Dims()
	out := &Covariances{kind: c.kind}
	if c.kind == CovarianceDiag {
		out.diag = mat.NewDense(k-1, d, nil)
		row := 0
		for m := 0; m < k; m++ {
			if m == index {
				continue
			}
			for j := 0; j < d; j++ {
				out.diag.Set(row, j, c.diag.At(m, j))
			}
			row++
		}
		return out
	}
	out.full = make([]*mat.SymDense, 0, k-1)
	for m, s := range c.full {
		if m == index {
			continue
		}
		cp := mat.NewSymDense(d, nil)
		cp.CopySym(s)
		out.full = append(out.full, cp)
	}
	return out
}

// withComponentAppended returns a copy of c with component src of other
// appended at the end.
func (c *Covariances) withComponentAppended(other *Covariances, src int) *Covariances {
	k, d := c.K(), c.Dims()
	out := &Covariances{kind: c.kind}
	if c.kind == CovarianceDiag {
		out.diag = mat.NewDense(k+1, d, nil)
		for m := 0; m < k; m++ {
			for j := 0; j < d; j++ {
				out.diag.Set(m, j, c.diag.At(m, j))
			}
		}
		for j := 0; j < d; j++ {
			out.diag.Set(k, j, other.diag.At(src, j))
		}
		return out
	}
	out.full = make([]*mat.SymDense, 0, k+1)
	for _, s := range c.full {
		cp := mat.NewSymDense(d, nil)
		cp.CopySym(s)
		out.full = append(out.full, cp)
	}
	cp := mat.NewSymDense(d, nil)
	cp.CopySym(other.full[src])
	out.full = append(out.full, cp)
	return out
}

// copyComponent overwrites component dst of c with component src of other.
func (c *Covariances) copyComponent(dst int, other *Covariances, src int) {
	d := c.Dims()
	if c.kind == CovarianceDiag {
		for j := 0; j < d; j++ {
			c.diag.Set(dst, j, other.diag.At(src, j))
		}
		return
	}
	c.full[dst].CopySym(other.full[src])
}

// precisionCholesky holds the Cholesky factors of the per-component
// precision matrices: inverse lower-triangular covariance factors for full
// structures, reciprocal standard deviations for diagonal ones. logDet is
// the log-determinant of each precision factor.
type precisionCholesky struct {
	kind   CovarianceType
	full   []*mat.TriDense
	diag   *mat.Dense
	logDet []float64
}

// covarianceOps is the structure-specific kernel set: covariance estimation,
// precision factorization and Gaussian log-density evaluation. One of the
// two implementations is selected from the CovarianceType enum at
// configuration time.
type covarianceOps interface {
	estimate(y, resp, means *mat.Dense, reg float64) *Covariances
	precisions(c *Covariances) (*precisionCholesky, error)
	logProb(y, means *mat.Dense, prec *precisionCholesky) *mat.Dense
}

func (t CovarianceType) ops() covarianceOps {
	if t == CovarianceDiag {
		return diagCovarianceOps{}
	}
	return fullCovarianceOps{}
}

type fullCovarianceOps struct{}

// estimate computes the responsibility-weighted empirical covariance of y
// about each component mean. The divisor is n_eff - 1 when the effective
// membership exceeds one data point, else n_eff (uncorrected).
func (fullCovarianceOps) estimate(y, resp, means *mat.Dense, reg float64) *Covariances {
	n, d := y.Dims()
	k, _ := resp.Dims()

	covs := make([]*mat.SymDense, k)
	diff := make([]float64, d)
	for m := 0; m < k; m++ {
		nm := floats.Sum(resp.RawRowView(m))
		denom := nm
		if nm > 1 {
			denom = nm - 1
		}

		s := mat.NewSymDense(d, nil)
		for i := 0; i < n; i++ {
			r := resp.At(m, i)
			if r == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				diff[j] = y.At(i, j) - means.At(m, j)
			}
			for j := 0; j < d; j++ {
				for l := j; l < d; l++ {
					s.SetSym(j, l, s.At(j, l)+r*diff[j]*diff[l])
				}
			}
		}
		for j := 0; j < d; j++ {
			for l := j; l < d; l++ {
				v := s.At(j, l) / denom
				if j == l {
					v += reg
				}
				s.SetSym(j, l, v)
			}
		}
		covs[m] = s
	}
	return &Covariances{kind: CovarianceFull, full: covs}
}

func (fullCovarianceOps) precisions(c *Covariances) (*precisionCholesky, error) {
	k, d := c.K(), c.Dims()
	p := &precisionCholesky{
		kind:   CovarianceFull,
		full:   make([]*mat.TriDense, k),
		logDet: make([]float64, k),
	}
	var chol mat.Cholesky
	for m := 0; m < k; m++ {
		if ok := chol.Factorize(c.full[m]); !ok {
			return nil, ErrSingularCovariance
		}
		lower := mat.NewTriDense(d, mat.Lower, nil)
		chol.LTo(lower)
		inv := mat.NewTriDense(d, mat.Lower, nil)
		if err := inv.InverseTri(lower); err != nil {
			return nil, ErrSingularCovariance
		}
		var ld float64
		for j := 0; j < d; j++ {
			ld += math.Log(inv.At(j, j))
		}
		p.full[m] = inv
		p.logDet[m] = ld
	}
	return p, nil
}

// logProb evaluates the N×K matrix of per-point per-component Gaussian log
// densities through the precision Cholesky factor; the normalization uses
// the factor's log-determinant so det(cov) is never formed.
func (fullCovarianceOps) logProb(y, means *mat.Dense, prec *precisionCholesky) *mat.Dense {
	n, d := y.Dims()
	k := len(prec.full)

	lp := mat.NewDense(n, k, nil)
	cst := float64(d) * math.Log(2*math.Pi)
	diff := mat.NewVecDense(d, nil)
	var z mat.VecDense
	for m := 0; m < k; m++ {
		for i := 0; i < n; i++ {
			for j := 0; j < d; j++ {
				diff.SetVec(j, y.At(i, j)-means.At(m, j))
			}
			z.MulVec(prec.full[m], diff)
			lp.Set(i, m, -0.5*(cst+mat.Dot(&z, &z))+prec.logDet[m])
		}
	}
	return lp
}

type diagCovarianceOps struct{}

func (diagCovarianceOps) estimate(y, resp, means *mat.Dense, reg float64) *Covariances {
	n, d := y.Dims()
	k, _ := resp.Dims()

	vars := mat.NewDense(k, d, nil)
	for m := 0; m < k; m++ {
		nm := floats.Sum(resp.RawRowView(m))
		denom := nm
		if nm > 1 {
			denom = nm - 1
		}
		for j := 0; j < d; j++ {
			var sum float64
			for i := 0; i < n; i++ {
				diff := y.At(i, j) - means.At(m, j)
				sum += resp.At(m, i) * diff * diff
			}
			vars.Set(m, j, sum/denom+reg)
		}
	}
	return &Covariances{kind: CovarianceDiag, diag: vars}
}

func (diagCovarianceOps) precisions(c *Covariances) (*precisionCholesky, error) {
	k, d := c.K(), c.Dims()
	p := &precisionCholesky{
		kind:   CovarianceDiag,
		diag:   mat.NewDense(k, d, nil),
		logDet: make([]float64, k),
	}
	for m := 0; m < k; m++ {
		var ld float64
		for j := 0; j < d; j++ {
			v := c.diag.At(m, j)
			if v <= 0 {
				return nil, ErrSingularCovariance
			}
			pc := 1 / math.Sqrt(v)
			p.diag.Set(m, j, pc)
			ld += math.Log(pc)
		}
		p.logDet[m] = ld
	}
	return p, nil
}

func (diagCovarianceOps) logProb(y, means *mat.Dense, prec *precisionCholesky) *mat.Dense {
	n, d := y.Dims()
	k, _ := prec.diag.Dims()

	lp := mat.NewDense(n, k, nil)
	cst := float64(d) * math.Log(2*math.Pi)
	for m := 0; m < k; m++ {
		for i := 0; i < n; i++ {
			var sq float64
			for j := 0; j < d; j++ {
				z := (y.At(i, j) - means.At(m, j)) * prec.diag.At(m, j)
				sq += z * z
			}
			lp.Set(i, m, -0.5*(cst+sq)+prec.logDet[m])
		}
	}
	return lp
}
