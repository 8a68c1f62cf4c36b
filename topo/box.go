// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package topo implements the geometry contract: periodic box, segments and
// the minimum-image convention used to build PolSphere/OutSphere shells
package topo

import "math"

// Box is an orthorhombic periodic cell. A zero side length disables the
// minimum-image convention along that axis (treated as open/non-periodic)
type Box struct {
	Lx, Ly, Lz float64 // side lengths, nm
}

// ShortestConnect returns the minimum-image vector rb-ra and its norm,
// wrapping each Cartesian component into (-L/2, L/2] when the corresponding
// side length is non-zero
func (o Box) ShortestConnect(ra, rb []float64) (d []float64, r float64) {
	d = make([]float64, 3)
	d[0] = wrap(rb[0]-ra[0], o.Lx)
	d[1] = wrap(rb[1]-ra[1], o.Ly)
	d[2] = wrap(rb[2]-ra[2], o.Lz)
	r = math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	return
}

// wrap folds dx into the minimum image given a periodic length L; L<=0
// disables wrapping on this axis
func wrap(dx, L float64) float64 {
	if L <= 0 {
		return dx
	}
	dx = math.Mod(dx, L)
	if dx > L/2 {
		dx -= L
	} else if dx <= -L/2 {
		dx += L
	}
	return dx
}
