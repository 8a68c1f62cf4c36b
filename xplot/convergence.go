// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package xplot draws optional SCF-convergence diagnostics
package xplot

import (
	"github.com/cpmech/gosl/plt"
)

// ConvergenceHistory draws dHistU (max relative induced-dipole change)
// against iteration number for one segment's induction pass, on linear
// axes, and saves it to path (".eps"/".png" as dictated by the extension, following
// plt.Save's own convention).
func ConvergenceHistory(segmentId int, dHistU []float64, path string) {
	plt.SetForEps(0.75, 350)
	iters := make([]float64, len(dHistU))
	for i := range iters {
		iters[i] = float64(i + 1)
	}
	plt.Plot(iters, dHistU, "'b.-', clip_on=0")
	plt.Gll("iteration", "max dHistU", "")
	plt.Save(path)
}
