// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xkernel

import "github.com/cpmech/gosl/la"

// small fixed-size vector/matrix helpers built on top of gosl/la; dot
// products go through utl.Dot3d

func sub3(a, b []float64) []float64 {
	r := make([]float64, 3)
	copy(r, a)
	la.VecAdd(r, -1, b) // r = a - b
	return r
}

func scale3(a []float64, s float64) []float64 {
	r := make([]float64, 3)
	la.VecScale(r, 0, s, a) // r = 0 + s*a
	return r
}

func add3(a, b []float64) []float64 {
	r := make([]float64, 3)
	copy(r, a)
	la.VecAdd(r, 1, b) // r = a + b
	return r
}

// matvec3 multiplies a symmetric 3x3 matrix by a 3-vector
func matvec3(m [][]float64, v []float64) []float64 {
	r := make([]float64, 3)
	la.MatVecMul(r, 1, m, v) // r = 1*m*v
	return r
}

// traceProduct returns sum_ij A_ij*B_ij for two 3x3 matrices (the Frobenius
// inner product, used by the quadrupole-quadrupole energy contraction)
func traceProduct(a, b [][]float64) float64 {
	sum := 0.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum += a[i][j] * b[i][j]
		}
	}
	return sum
}

// quadAsMatrix expands the five independent spherical quadrupole
// components (Q20, Q21c, Q21s, Q22c, Q22s) into the traceless symmetric
// Cartesian quadrupole tensor Theta, using the standard real-solid-harmonic
// definitions
func quadAsMatrix(q20, q21c, q21s, q22c, q22s float64) [][]float64 {
	const sqrt3 = 1.7320508075688772
	txx := -0.5*q20 + 0.5*sqrt3*q22c
	tyy := -0.5*q20 - 0.5*sqrt3*q22c
	tzz := q20
	txy := 0.5 * sqrt3 * q22s
	txz := 0.5 * sqrt3 * q21c
	tyz := 0.5 * sqrt3 * q21s
	m := la.MatAlloc(3, 3)
	m[0][0], m[0][1], m[0][2] = txx, txy, txz
	m[1][0], m[1][1], m[1][2] = txy, tyy, tyz
	m[2][0], m[2][1], m[2][2] = txz, tyz, tzz
	return m
}
