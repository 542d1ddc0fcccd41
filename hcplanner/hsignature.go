// Package hcplanner implements a homotopy-class local planner: it discovers
// topologically distinct candidate trajectories around the current obstacle
// set, optimizes each as a timed elastic band, and elects the cheapest
// survivor as the active plan.
package hcplanner

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/golang/geo/r2"

	"go.viam.com/hcplanner/obstacle"
)

// denominatorEpsilon perturbs near-zero denominators in the signature
// integrand so an obstacle coincident with a path vertex does not produce
// NaNs.
const denominatorEpsilon = 1e-9

// HSignature is a complex-valued topological invariant of a path relative to
// an obstacle set. Two paths between the same endpoints that route around the
// obstacles the same way produce equivalent signatures.
type HSignature struct {
	value complex128
}

// NewHSignature creates a signature from real and imaginary parts.
func NewHSignature(re, im float64) HSignature {
	return HSignature{value: complex(re, im)}
}

// Real returns the signature's real part.
func (h HSignature) Real() float64 { return real(h.value) }

// Imag returns the signature's imaginary part.
func (h HSignature) Imag() float64 { return imag(h.value) }

// Neg returns the negated signature, the invariant of the reversed path.
func (h HSignature) Neg() HSignature { return HSignature{value: -h.value} }

func (h HSignature) String() string {
	return fmt.Sprintf("H(%.6g, %.6g)", real(h.value), imag(h.value))
}

// EquivalentTo reports whether both coordinates of the two signatures agree
// within threshold. The relation is deliberately pairwise and non-transitive;
// callers keep a linear scan over live signatures rather than hashing.
func (h HSignature) EquivalentTo(other HSignature, threshold float64) bool {
	return math.Abs(real(h.value)-real(other.value)) <= threshold &&
		math.Abs(imag(h.value)-imag(other.value)) <= threshold
}

// ComputeHSignature evaluates the path's topological invariant against the
// obstacle set. Path vertices and obstacle centroids are mapped to the
// complex plane (scaled by prescaler for numeric stability) and the
// Bhattacharya-style integral
//
//	H = sum_j a_j * sum_k Log((z_{k+1} - o_j) / (z_k - o_j))
//
// is accumulated over path segments using the principal branch of Log, with
// a_j = (-1)^j / prod_{l != j} (o_j - o_l). Compensated summation stands in
// for the extended-precision accumulator the integral calls for.
func ComputeHSignature(points []r2.Point, obstacles []obstacle.Obstacle, prescaler float64) HSignature {
	if len(points) < 2 || len(obstacles) == 0 {
		return HSignature{}
	}

	centers := make([]complex128, len(obstacles))
	for j, obst := range obstacles {
		c := obst.Centroid()
		centers[j] = complex(prescaler*c.X, prescaler*c.Y)
	}
	weights := branchWeights(centers)

	var sum kahanComplex
	for j, center := range centers {
		var inner kahanComplex
		for k := 0; k+1 < len(points); k++ {
			z0 := complex(prescaler*points[k].X, prescaler*points[k].Y)
			z1 := complex(prescaler*points[k+1].X, prescaler*points[k+1].Y)
			den := z0 - center
			if cmplx.Abs(den) < denominatorEpsilon {
				den += complex(denominatorEpsilon, denominatorEpsilon)
			}
			num := z1 - center
			if cmplx.Abs(num) < denominatorEpsilon {
				num += complex(denominatorEpsilon, denominatorEpsilon)
			}
			inner.add(cmplx.Log(num / den))
		}
		sum.add(weights[j] * inner.total())
	}
	return HSignature{value: sum.total()}
}

// branchWeights computes the per-obstacle coefficients a_j. For a single
// obstacle the empty product leaves a_0 = 1.
func branchWeights(centers []complex128) []complex128 {
	weights := make([]complex128, len(centers))
	for j := range centers {
		prod := complex(1, 0)
		for l := range centers {
			if l == j {
				continue
			}
			d := centers[j] - centers[l]
			if cmplx.Abs(d) < denominatorEpsilon {
				d += complex(denominatorEpsilon, denominatorEpsilon)
			}
			prod *= d
		}
		sign := complex(1, 0)
		if j%2 == 1 {
			sign = complex(-1, 0)
		}
		weights[j] = sign / prod
	}
	return weights
}

// kahanComplex accumulates complex terms with Neumaier compensation on each
// coordinate; long paths with many obstacles lose digits under naive
// summation.
type kahanComplex struct {
	sumRe, sumIm   float64
	compRe, compIm float64
}

func (k *kahanComplex) add(v complex128) {
	k.sumRe = neumaierAdd(k.sumRe, real(v), &k.compRe)
	k.sumIm = neumaierAdd(k.sumIm, imag(v), &k.compIm)
}

func (k *kahanComplex) total() complex128 {
	return complex(k.sumRe+k.compRe, k.sumIm+k.compIm)
}

func neumaierAdd(sum, v float64, comp *float64) float64 {
	t := sum + v
	if math.Abs(sum) >= math.Abs(v) {
		*comp += (sum - t) + v
	} else {
		*comp += (v - t) + sum
	}
	return t
}
