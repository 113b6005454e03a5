// Package pca reduces embedding vectors to 2D map coordinates.
package pca

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Project reduces the vectors to their first two principal components
// and min-max scales each axis to [-1, 1]. Fewer than two vectors give
// no spread to project, so every point maps to the origin. If the
// decomposition fails the points are scattered randomly instead of
// failing the whole pipeline.
func Project(vectors [][]float64) [][2]float64 {
	n := len(vectors)
	coords := make([][2]float64, n)
	if n < 2 {
		return coords
	}

	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim || dim == 0 {
			return scatter(n)
		}
	}

	data := mat.NewDense(n, dim, nil)
	for i, v := range vectors {
		data.SetRow(i, v)
	}

	var pc stat.PC
	if !pc.PrincipalComponents(data, nil) {
		return scatter(n)
	}

	var vec mat.Dense
	pc.VectorsTo(&vec)
	_, comps := vec.Dims()
	k := comps
	if k > 2 {
		k = 2
	}

	var proj mat.Dense
	proj.Mul(data, vec.Slice(0, dim, 0, k))

	for axis := 0; axis < k; axis++ {
		lo, hi := proj.At(0, axis), proj.At(0, axis)
		for i := 1; i < n; i++ {
			v := proj.At(i, axis)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}

		// A degenerate axis (all points identical) substitutes a span
		// of 1 so the division is safe.
		span := hi - lo
		if span == 0 {
			span = 1
		}
		for i := 0; i < n; i++ {
			coords[i][axis] = 2*(proj.At(i, axis)-lo)/span - 1
		}
	}
	return coords
}

func scatter(n int) [][2]float64 {
	coords := make([][2]float64, n)
	for i := range coords {
		coords[i] = [2]float64{rand.Float64()*2 - 1, rand.Float64()*2 - 1}
	}
	return coords
}
