// Package fitting fits beam caustics for M² estimation.
//
// Lengths follow the units of a caustic scan: beam radii w in µm, positions z
// in mm, and wavelengths in nm.  With these units the beam propagation
// equations need no scale factors.
package fitting

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrLength is generated when the inputs to a fit differ in length
	ErrLength = errors.New("x, y, and sigma must have the same length")

	// ErrTooFewPoints is generated when there are fewer points than parameters
	ErrTooFewPoints = errors.New("fewer data points than parameters")

	// ErrBadSigma is generated when an uncertainty is not positive
	ErrBadSigma = errors.New("uncertainties must be positive")

	// ErrNotFinite is generated when the model is NaN or infinite at the
	// initial parameters
	ErrNotFinite = errors.New("model is not finite at the initial parameters")

	// ErrNoConvergence is generated when the fit runs out of iterations
	ErrNoConvergence = errors.New("optimal parameters not found")
)

const (
	// sqrtEps is the relative step of the forward difference Jacobian
	sqrtEps = 1.4901161193847656e-08

	defaultMaxIter = 1000
	defaultTol     = 1.49012e-08

	// gradTol bounds the cosine between the residuals and every column of
	// the Jacobian at a minimum
	gradTol = 1e-10

	lambdaInit = 1e-3
	lambdaMax  = 1e16
)

// Model is a function of parameters p evaluated at x
type Model func(p []float64, x float64) float64

// Result is the outcome of a least squares fit
type Result struct {
	// Params are the best fit parameters
	Params []float64 `json:"params"`

	// Errors are the one standard deviation errors of Params, the square
	// roots of the diagonal of Cov
	Errors []float64 `json:"errors"`

	// Cov is the covariance of Params, scaled by ChiSqRed.  It is +Inf when
	// the problem is singular or there are no degrees of freedom
	Cov *mat.SymDense `json:"-"`

	// ChiSqRed is the reduced chi squared of the fit
	ChiSqRed float64 `json:"chiSqRed"`

	// Iterations is the number of accepted steps
	Iterations int `json:"iterations"`
}

// CurveFit fits f to (x, y) by weighted Levenberg-Marquardt least squares,
// starting from p0.  sigma holds the uncertainties of y and may be nil for an
// unweighted fit.  Uncertainties are relative: the covariance is scaled by
// the reduced chi squared of the fit
func CurveFit(f Model, x, y, sigma, p0 []float64) (Result, error) {
	n, m := len(x), len(p0)
	if len(y) != n || (sigma != nil && len(sigma) != n) {
		return Result{}, ErrLength
	}
	if n < m {
		return Result{}, fmt.Errorf("%w: %d points for %d parameters", ErrTooFewPoints, n, m)
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
		if sigma != nil {
			if !(sigma[i] > 0) {
				return Result{}, fmt.Errorf("%w: sigma[%d]=%v", ErrBadSigma, i, sigma[i])
			}
			w[i] = 1 / sigma[i]
		}
	}

	prob := problem{f: f, x: x, y: y, w: w}
	p := append([]float64(nil), p0...)
	chi := prob.chiSq(p)
	if math.IsNaN(chi) || math.IsInf(chi, 0) {
		return Result{}, ErrNotFinite
	}

	lambda := lambdaInit
	iters := 0
	converged := false
	for iter := 0; iter < defaultMaxIter && !converged; iter++ {
		J, r := prob.linearize(p)
		var A mat.Dense
		A.Mul(J.T(), J)
		var g mat.VecDense
		g.MulVec(J.T(), r)
		if gradientSmall(&A, &g, chi) {
			converged = true
			break
		}

		accepted := false
		for lambda < lambdaMax {
			trial, ok := step(&A, &g, p, lambda)
			if !ok {
				lambda *= 10
				continue
			}
			c := prob.chiSq(trial)
			if c < chi {
				// a small drop in chi squared alone is not a minimum, the
				// gradient test above decides that on the next pass
				converged = smallStep(p, trial)
				p, chi = trial, c
				lambda = math.Max(lambda/10, 1e-12)
				accepted = true
				iters++
				break
			}
			lambda *= 10
		}
		if !accepted {
			// no step lowers chi squared, p is a minimum
			converged = true
		}
	}
	if !converged {
		return Result{}, fmt.Errorf("%w after %d iterations", ErrNoConvergence, defaultMaxIter)
	}

	res := Result{Params: p, Iterations: iters}
	dof := n - m
	if dof > 0 {
		res.ChiSqRed = chi / float64(dof)
	} else {
		res.ChiSqRed = math.Inf(1)
	}
	J, _ := prob.linearize(p)
	res.Cov = covariance(J, res.ChiSqRed)
	res.Errors = make([]float64, m)
	for i := range res.Errors {
		res.Errors[i] = math.Sqrt(res.Cov.At(i, i))
	}
	return res, nil
}

type problem struct {
	f       Model
	x, y, w []float64
}

func (pr problem) chiSq(p []float64) float64 {
	var s float64
	for i, x := range pr.x {
		r := (pr.y[i] - pr.f(p, x)) * pr.w[i]
		s += r * r
	}
	return s
}

// linearize returns the weighted Jacobian of the model at p and the weighted
// residuals
func (pr problem) linearize(p []float64) (*mat.Dense, *mat.VecDense) {
	n, m := len(pr.x), len(p)
	f0 := make([]float64, n)
	r := mat.NewVecDense(n, nil)
	for i, x := range pr.x {
		f0[i] = pr.f(p, x)
		r.SetVec(i, (pr.y[i]-f0[i])*pr.w[i])
	}
	J := mat.NewDense(n, m, nil)
	q := append([]float64(nil), p...)
	for j := range p {
		h := sqrtEps * math.Abs(p[j])
		if h == 0 {
			h = sqrtEps
		}
		q[j] = p[j] + h
		h = q[j] - p[j]
		for i, x := range pr.x {
			J.Set(i, j, (pr.f(q, x)-f0[i])/h*pr.w[i])
		}
		q[j] = p[j]
	}
	return J, r
}

// step solves the damped normal equations (A + λ diag(A)) δ = g and returns
// p + δ
func step(A *mat.Dense, g *mat.VecDense, p []float64, lambda float64) ([]float64, bool) {
	m := len(p)
	var damped mat.Dense
	damped.CloneFrom(A)
	for i := 0; i < m; i++ {
		d := A.At(i, i)
		if d <= 0 {
			d = 1
		}
		damped.Set(i, i, d*(1+lambda))
	}
	var delta mat.VecDense
	if err := delta.SolveVec(&damped, g); err != nil {
		return nil, false
	}
	trial := make([]float64, m)
	for i := range trial {
		trial[i] = p[i] + delta.AtVec(i)
		if math.IsNaN(trial[i]) || math.IsInf(trial[i], 0) {
			return nil, false
		}
	}
	return trial, true
}

// gradientSmall reports whether every column of the Jacobian is nearly
// orthogonal to the residuals, with A = JᵀJ and g = Jᵀr
func gradientSmall(A *mat.Dense, g *mat.VecDense, chi float64) bool {
	if chi == 0 {
		return true
	}
	for i := 0; i < g.Len(); i++ {
		d := A.At(i, i)
		if d == 0 {
			continue
		}
		if math.Abs(g.AtVec(i))/math.Sqrt(d*chi) > gradTol {
			return false
		}
	}
	return true
}

func smallStep(p, q []float64) bool {
	var dp, pn float64
	for i := range p {
		dp += (q[i] - p[i]) * (q[i] - p[i])
		pn += q[i] * q[i]
	}
	return math.Sqrt(dp) <= defaultTol*(math.Sqrt(pn)+defaultTol)
}

// covariance returns inv(JᵀJ)·scale, or a matrix of +Inf when JᵀJ is
// singular or scale is infinite
func covariance(J *mat.Dense, scale float64) *mat.SymDense {
	_, m := J.Dims()
	cov := mat.NewSymDense(m, nil)
	var A mat.SymDense
	A.SymOuterK(1, J.T())
	var chol mat.Cholesky
	if math.IsInf(scale, 0) || !chol.Factorize(&A) {
		return infSym(m)
	}
	if err := chol.InverseTo(cov); err != nil {
		return infSym(m)
	}
	cov.ScaleSym(scale, cov)
	return cov
}

func infSym(m int) *mat.SymDense {
	data := make([]float64, m*m)
	for i := range data {
		data[i] = math.Inf(1)
	}
	return mat.NewSymDense(m, data)
}
