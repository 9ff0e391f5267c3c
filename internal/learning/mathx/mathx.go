// Package mathx holds the dense vector and matrix primitives used by the
// adaptive engine. Vectors are []float64, matrices are row-major [][]float64.
// Every function is pure: inputs are never modified.
package mathx

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNotPositiveDefinite = errors.New("mathx: matrix is not positive definite")
	ErrShapeMismatch       = errors.New("mathx: shape mismatch")
)

// pivotFloor is the smallest Cholesky pivot accepted as positive.
const pivotFloor = 1e-10

// Rand is the randomness consumed by the samplers. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
}

func Zeros(n int) []float64 { return make([]float64, n) }

func ZeroMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func Identity(n int) [][]float64 {
	m := ZeroMatrix(n)
	for i := 0; i < n; i++ {
		m[i][i] = 1
	}
	return m
}

func CloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func CloneMat(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = CloneVec(m[i])
	}
	return out
}

// IsSquare reports whether m is n×n.
func IsSquare(m [][]float64, n int) bool {
	if len(m) != n {
		return false
	}
	for _, row := range m {
		if len(row) != n {
			return false
		}
	}
	return true
}

func Dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	s := 0.0
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

func AddVec(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func ScaleVec(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * s
	}
	return out
}

// Outer returns a·bᵀ.
func Outer(a, b []float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(b))
		for j := range b {
			out[i][j] = a[i] * b[j]
		}
	}
	return out
}

func AddMat(a, b [][]float64) [][]float64 {
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, len(a[i]))
		for j := range a[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}

func ScaleMat(m [][]float64, s float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = ScaleVec(m[i], s)
	}
	return out
}

func MatVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(m))
	for i := range m {
		out[i] = Dot(m[i], v)
	}
	return out
}

func MatMul(a, b [][]float64) [][]float64 {
	if len(a) == 0 || len(b) == 0 {
		return [][]float64{}
	}
	cols := len(b[0])
	out := make([][]float64, len(a))
	for i := range a {
		out[i] = make([]float64, cols)
		for k := range b {
			aik := a[i][k]
			if aik == 0 {
				continue
			}
			for j := 0; j < cols; j++ {
				out[i][j] += aik * b[k][j]
			}
		}
	}
	return out
}

// AddDiagonal returns m + eps·I.
func AddDiagonal(m [][]float64, eps float64) [][]float64 {
	out := CloneMat(m)
	for i := range out {
		out[i][i] += eps
	}
	return out
}

// StandardNormal draws one N(0,1) sample with the Box-Muller transform.
//
//	z = √(-2 ln u₁) · cos(2π u₂),  u₁ ∈ (0,1]
func StandardNormal(rng Rand) float64 {
	u1 := 1 - rng.Float64()
	u2 := rng.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Cholesky returns the lower-triangular L with A = L·Lᵀ, computed row by row.
// Only the lower triangle of a is read.
func Cholesky(a [][]float64) ([][]float64, error) {
	n := len(a)
	if !IsSquare(a, n) {
		return nil, fmt.Errorf("cholesky: %w", ErrShapeMismatch)
	}
	l := ZeroMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= pivotFloor || math.IsNaN(sum) {
					return nil, fmt.Errorf("cholesky pivot %d = %g: %w", i, sum, ErrNotPositiveDefinite)
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// InvertSPD inverts a symmetric positive-definite matrix: L⁻¹ by forward
// substitution on the Cholesky factor, then A⁻¹ = L⁻ᵀ·L⁻¹.
func InvertSPD(a [][]float64) ([][]float64, error) {
	l, err := Cholesky(a)
	if err != nil {
		return nil, err
	}
	n := len(l)
	linv := ZeroMatrix(n)
	for col := 0; col < n; col++ {
		for i := col; i < n; i++ {
			sum := 0.0
			if i == col {
				sum = 1
			}
			for k := col; k < i; k++ {
				sum -= l[i][k] * linv[k][col]
			}
			linv[i][col] = sum / l[i][i]
		}
	}
	inv := ZeroMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := 0.0
			for k := i; k < n; k++ {
				sum += linv[k][i] * linv[k][j]
			}
			inv[i][j] = sum
			inv[j][i] = sum
		}
	}
	return inv, nil
}

// SampleMVN draws x ~ N(mean, cov) as mean + L·z with L the Cholesky factor
// of cov and z iid standard normal.
func SampleMVN(mean []float64, cov [][]float64, rng Rand) ([]float64, error) {
	if !IsSquare(cov, len(mean)) {
		return nil, fmt.Errorf("sample mvn: %w", ErrShapeMismatch)
	}
	l, err := Cholesky(cov)
	if err != nil {
		return nil, err
	}
	z := make([]float64, len(mean))
	for i := range z {
		z[i] = StandardNormal(rng)
	}
	return AddVec(mean, MatVec(l, z)), nil
}
