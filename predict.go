package gmmmml

import (
	"errors"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

// monteCarloDraws is the number of parameter samples used to propagate fit
// uncertainty into forecast bands.
const monteCarloDraws = 100

// Forecast carries predicted values for a set of component counts along
// with 16th/84th-percentile uncertainty bands. Band entries are NaN when
// the fit's parameter covariance is unavailable.
type Forecast struct {
	K      []int
	Values []float64
	Lower  []float64
	Upper  []float64
}

// fitCurve fits f(x, params) to (xs, ys) by Nelder-Mead least squares.
// sigmas, when non-nil, scales each residual by 1/sigma (smaller sigma,
// stronger pull). The returned covariance is the Gauss-Newton estimate at
// the optimum, or nil if it cannot be formed.
func fitCurve(f func(x float64, p []float64) float64, xs, ys, sigmas, p0 []float64) ([]float64, *mat.SymDense, error) {
	obj := func(p []float64) float64 {
		var rss float64
		for i := range xs {
			r := ys[i] - f(xs[i], p)
			if sigmas != nil {
				r /= sigmas[i]
			}
			rss += r * r
		}
		return rss
	}

	res, err := optimize.Minimize(optimize.Problem{Func: obj}, append([]float64(nil), p0...), nil, &optimize.NelderMead{})
	if res == nil {
		return nil, nil, err
	}
	popt := res.X
	for _, p := range popt {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, nil, errors.New("gmmmml: curve fit diverged")
		}
	}

	np := len(popt)
	jac := mat.NewDense(len(xs), np, nil)
	for j := 0; j < np; j++ {
		h := 1e-6 * math.Max(1, math.Abs(popt[j]))
		pp := append([]float64(nil), popt...)
		pm := append([]float64(nil), popt...)
		pp[j] += h
		pm[j] -= h
		for i := range xs {
			df := (f(xs[i], pp) - f(xs[i], pm)) / (2 * h)
			if sigmas != nil {
				df /= sigmas[i]
			}
			jac.Set(i, j, df)
		}
	}
	var jtj, inv mat.Dense
	jtj.Mul(jac.T(), jac)
	if err := inv.Inverse(&jtj); err != nil {
		return popt, nil, nil
	}
	s2 := 1.0
	if dof := len(xs) - np; dof > 0 {
		s2 = obj(popt) / float64(dof)
	}
	cov := mat.NewSymDense(np, nil)
	for i := 0; i < np; i++ {
		for j := i; j < np; j++ {
			cov.SetSym(i, j, 0.5*(inv.At(i, j)+inv.At(j, i))*s2)
		}
	}
	return popt, cov, nil
}

// drawParams samples parameter vectors from the multivariate normal
// defined by the fit optimum and covariance. Returns nil when the
// covariance is not positive definite.
func drawParams(popt []float64, pcov *mat.SymDense, size int, src rand.Source) [][]float64 {
	if pcov == nil {
		return nil
	}
	norm, ok := distmv.NewNormal(popt, pcov, src)
	if !ok {
		return nil
	}
	draws := make([][]float64, size)
	for i := range draws {
		draws[i] = norm.Rand(nil)
	}
	return draws
}

// quantileAcross returns the q-th empirical quantile of column j over a set
// of Monte Carlo prediction rows.
func quantileAcross(rows [][]float64, j int, q float64) float64 {
	col := make([]float64, len(rows))
	for i, row := range rows {
		col[i] = row[j]
	}
	sort.Float64s(col)
	return stat.Quantile(q, stat.Empirical, col, nil)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// PredictSumLogWeights forecasts sum(log w) for the target component counts
// by fitting f(K) = -a*K*log(K) + c to the per-K minima of the observed
// history. With fewer than two distinct observed K, the analytic
// uniform-weight upper bound is returned as the prediction. The analytic
// lower and upper bounds for every target K are always returned alongside.
func PredictSumLogWeights(targetK []int, n int, hist *SearchHistory, src rand.Source) (forecast Forecast, boundLower, boundUpper []float64) {
	nt := len(targetK)
	boundLower = make([]float64, nt)
	boundUpper = make([]float64, nt)
	for i, k := range targetK {
		boundLower[i], boundUpper[i] = sumLogWeightBounds(float64(k), n)
	}

	forecast = Forecast{
		K:      targetK,
		Values: make([]float64, nt),
		Lower:  nanSlice(nt),
		Upper:  nanSlice(nt),
	}

	f := func(x float64, p []float64) float64 { return -p[0]*x*math.Log(x) + p[1] }

	xs, ys := hist.groupOver(
		func(e HistoryEntry) float64 { return e.SumLogWeights },
		func(v []float64) float64 { return floatsMin(v) },
	)
	if len(xs) < 2 {
		copy(forecast.Values, boundUpper)
		return forecast, boundLower, boundUpper
	}

	popt, pcov, err := fitCurve(f, xs, ys, nil, []float64{1, 0})
	if err != nil {
		copy(forecast.Values, boundUpper)
		return forecast, boundLower, boundUpper
	}
	for i, k := range targetK {
		forecast.Values[i] = f(float64(k), popt)
	}

	if draws := drawParams(popt, pcov, monteCarloDraws, src); draws != nil {
		preds := make([][]float64, len(draws))
		for i, p := range draws {
			row := make([]float64, nt)
			for j, k := range targetK {
				row[j] = f(float64(k), p)
			}
			preds[i] = row
		}
		for j := range targetK {
			forecast.Lower[j] = quantileAcross(preds, j, 0.16)
			forecast.Upper[j] = quantileAcross(preds, j, 0.84)
		}
	}
	return forecast, boundLower, boundUpper
}

// PredictSumLogLikelihoods forecasts the summed log-likelihood for the
// target component counts by fitting a saturating exponential
// a*exp(b*K) + c to the normalized per-K maxima of the history, by
// penalized maximum likelihood with a weak Gaussian prior keeping the
// amplitude a in [0, 1]. The previous optimum, kept on the history,
// warm-starts the fit across outer iterations.
func PredictSumLogLikelihoods(targetK []int, hist *SearchHistory) ([]float64, error) {
	if hist.Len() == 0 {
		return nil, errors.New("gmmmml: no history to predict log-likelihoods from")
	}

	xs, ys := hist.groupOver(
		func(e HistoryEntry) float64 { return e.SumLogLikelihood },
		func(v []float64) float64 { return floatsMax(v) },
	)
	normalization := ys[0]
	yfit := make([]float64, len(ys))
	for i, v := range ys {
		yfit[i] = v / normalization
	}

	f := func(x float64, p []float64) float64 { return p[0]*math.Exp(p[1]*x) + p[2] }

	lnPrior := func(p []float64) float64 {
		if p[0] > 1 || p[0] < 0 || p[1] > 0 {
			return 0
		}
		return -0.5 * (p[0] - 0.5) * (p[0] - 0.5) / (0.10 * 0.10)
	}
	negLnProb := func(p []float64) float64 {
		var sq float64
		for i := range xs {
			r := yfit[i] - f(xs[i], p)
			sq += r * r
		}
		return 0.5*sq - lnPrior(p)
	}

	p0 := hist.logLikelihoodParams
	if p0 == nil {
		p0 = []float64{0.5, -0.10, 0.5}
	}
	res, err := optimize.Minimize(optimize.Problem{Func: negLnProb}, append([]float64(nil), p0...), nil, &optimize.NelderMead{})
	if res == nil {
		return nil, err
	}
	popt := res.X
	for _, p := range popt {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, errors.New("gmmmml: log-likelihood trend fit diverged")
		}
	}
	hist.logLikelihoodParams = append([]float64(nil), popt...)

	pred := make([]float64, len(targetK))
	for i, k := range targetK {
		pred[i] = normalization * f(float64(k), popt)
	}
	return pred, nil
}

// PredictSumLogDetCovs forecasts the summed log-determinant of the
// component covariance matrices for the target component counts by fitting
// the rational decay a/(K-b) + c to the per-K medians of slogdetcov per
// component, weighted toward larger K. Requires at least four distinct
// observed K; ok is false otherwise. Fit uncertainty is propagated by
// Monte Carlo parameter draws into 16th/84th-percentile bands.
func PredictSumLogDetCovs(targetK []int, hist *SearchHistory, src rand.Source) (forecast Forecast, ok bool) {
	sumLogDet := func(e HistoryEntry) float64 {
		var sum float64
		for _, det := range e.DetCovariances {
			sum += math.Log(det)
		}
		return sum
	}
	xs, meds := hist.groupOver(sumLogDet, median)
	if len(xs) <= 3 {
		return Forecast{}, false
	}

	// Fit slogdetcov per component against K.
	ys := make([]float64, len(meds))
	sigmas := make([]float64, len(xs))
	for i := range meds {
		ys[i] = meds[i] / xs[i]
		sigmas[i] = math.Pow(xs[i], -2)
	}

	f := func(x float64, p []float64) float64 { return p[0]/(x-p[1]) + p[2] }

	p0 := hist.logDetCovParams
	if p0 == nil {
		p0 = []float64{ys[0], 0.5, 0}
	}
	popt, pcov, err := fitCurve(f, xs, ys, sigmas, p0)
	if err != nil {
		return Forecast{}, false
	}
	hist.logDetCovParams = append([]float64(nil), popt...)

	nt := len(targetK)
	forecast = Forecast{
		K:      targetK,
		Values: make([]float64, nt),
		Lower:  nanSlice(nt),
		Upper:  nanSlice(nt),
	}
	draws := drawParams(popt, pcov, monteCarloDraws, src)
	if draws == nil {
		for i, k := range targetK {
			forecast.Values[i] = float64(k) * f(float64(k), popt)
		}
		return forecast, true
	}
	preds := make([][]float64, len(draws))
	for i, p := range draws {
		row := make([]float64, nt)
		for j, k := range targetK {
			row[j] = float64(k) * f(float64(k), p)
		}
		preds[i] = row
	}
	for j := range targetK {
		forecast.Values[j] = quantileAcross(preds, j, 0.50)
		forecast.Lower[j] = quantileAcross(preds, j, 0.16)
		forecast.Upper[j] = quantileAcross(preds, j, 0.84)
	}
	return forecast, true
}

// PredictMessageLength forecasts the total message length of mixtures with
// the target component counts, combining the three term forecasts through
// the closed-form message-length difference between the current mixture and
// a future K. ok reports whether the history supports all three fits; when
// it is false the returned slice is nil.
//
// Forecast bands and bounds are emitted to cfg.Observer under the
// "predict_slw", "slw_bounds", "predict_ll", "predict_slogdetcov" and
// "predict_message_length" events.
func PredictMessageLength(targetK []int, n int, mix *Mixture, sumLogLikelihood float64, current MessageLength, hist *SearchHistory, cfg Config) ([]float64, bool) {
	applyDefaults(&cfg)
	d := float64(mix.Dims())
	currentK := mix.K()
	fn := float64(n)

	slw, boundLower, boundUpper := PredictSumLogWeights(targetK, n, hist, cfg.Rand)
	emit(cfg.Observer, "predict_slw", map[string]any{
		"K": targetK, "p_slw": slw.Values, "p_slw_lower": slw.Lower, "p_slw_upper": slw.Upper,
	})
	emit(cfg.Observer, "slw_bounds", map[string]any{
		"K": targetK, "lower": boundLower, "upper": boundUpper,
	})

	pll, err := PredictSumLogLikelihoods(targetK, hist)
	if err != nil {
		return nil, false
	}
	emit(cfg.Observer, "predict_ll", map[string]any{"K": targetK, "p_ll": pll})

	sldc, ok := PredictSumLogDetCovs(targetK, hist, cfg.Rand)
	if !ok {
		return nil, false
	}
	emit(cfg.Observer, "predict_slogdetcov", map[string]any{
		"K": targetK, "p_slogdetcov": sldc.Values,
		"p_slogdetcov_lower": sldc.Lower, "p_slogdetcov_upper": sldc.Upper,
	})

	var currentSlw float64
	for _, w := range mix.Weights {
		currentSlw += math.Log(w)
	}
	currentSldc := mix.Covariances.SumLogDet()

	pI := make([]float64, len(targetK))
	for i, t := range targetK {
		dk := float64(t - currentK)
		delta := dk*((1-d/2)*math.Ln2+0.25*(d*(d+3)+2)*math.Log(fn/(2*math.Pi))) +
			0.5*(d*(d+3)/2-1)*(slw.Values[i]-currentSlw) -
			math.Log(float64(t)) +
			0.5*math.Log(totalParameters(float64(t), d)/totalParameters(float64(currentK), d)) +
			(d+2)/2*(sldc.Values[i]-currentSldc) -
			pll[i] + sumLogLikelihood
		pI[i] = current.Total + delta
	}
	emit(cfg.Observer, "predict_message_length", map[string]any{"K": targetK, "p_I": pI})
	return pI, true
}

func floatsMin(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		out = math.Min(out, x)
	}
	return out
}

func floatsMax(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		out = math.Max(out, x)
	}
	return out
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	m := len(s) / 2
	if len(s)%2 == 1 {
		return s[m]
	}
	return 0.5 * (s[m-1] + s[m])
}
