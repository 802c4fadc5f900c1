package hierarchy

import (
	"gonum.org/v1/gonum/floats"
)

// sparseCol is one active column of the overflow matrix: the layer-0 index
// it stands for and the upper-layer rows it feeds. Duplicate rows are kept
// and sum naturally under the matrix products.
type sparseCol struct {
	idx  int
	rows []int
}

// solveLSQ computes the least-squares solution of A*x ~= b by conjugate
// gradient on the normal equations (CGNR). Inactive columns of A are empty,
// so their solution entries stay exactly zero. The iteration is
// deterministic for fixed inputs.
func solveLSQ(cols []sparseCol, n int, b []float64) []float64 {
	x := make([]float64, n)
	if len(cols) == 0 {
		return x
	}

	applyA := func(v, out []float64) {
		for i := range out {
			out[i] = 0
		}
		for _, c := range cols {
			for _, r := range c.rows {
				out[r] += v[c.idx]
			}
		}
	}
	applyAT := func(v, out []float64) {
		for i := range out {
			out[i] = 0
		}
		for _, c := range cols {
			sum := 0.0
			for _, r := range c.rows {
				sum += v[r]
			}
			out[c.idx] = sum
		}
	}

	r := make([]float64, len(b))
	copy(r, b) // residual of x = 0
	s := make([]float64, n)
	applyAT(r, s)
	p := make([]float64, n)
	copy(p, s)
	q := make([]float64, len(b))

	gamma := floats.Dot(s, s)
	tol := 1e-20 * (gamma + 1)
	maxIter := 2 * (n + len(b))

	for iter := 0; iter < maxIter && gamma > tol; iter++ {
		applyA(p, q)
		qq := floats.Dot(q, q)
		if qq == 0 {
			break
		}
		alpha := gamma / qq
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, q)
		applyAT(r, s)
		gammaNext := floats.Dot(s, s)
		beta := gammaNext / gamma
		for i := range p {
			p[i] = s[i] + beta*p[i]
		}
		gamma = gammaNext
	}
	return x
}
