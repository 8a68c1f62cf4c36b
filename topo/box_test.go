// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"testing"

	"github.com/cpmech/gosl/chk"
)

// Test_box01 checks that a non-periodic box (all sides zero) leaves the
// raw displacement untouched
func Test_box01(tst *testing.T) {
	chk.PrintTitle("box01: no periodicity")

	b := Box{}
	d, r := b.ShortestConnect([]float64{0, 0, 0}, []float64{5, 0, 0})
	chk.AnaNum(tst, "d.x", 1e-15, d[0], 5, chk.Verbose)
	chk.AnaNum(tst, "r", 1e-15, r, 5, chk.Verbose)
}

// Test_box02 checks minimum-image wrapping along a periodic axis
func Test_box02(tst *testing.T) {
	chk.PrintTitle("box02: minimum image")

	b := Box{Lx: 10, Ly: 10, Lz: 10}
	d, r := b.ShortestConnect([]float64{0, 0, 0}, []float64{9, 0, 0})
	// 9 wraps to -1 (shorter path the other way around the box)
	chk.AnaNum(tst, "d.x", 1e-15, d[0], -1, chk.Verbose)
	chk.AnaNum(tst, "r", 1e-15, r, 1, chk.Verbose)
}

// Test_shell01 checks PolSphere/OutSphere partitioning by COM distance
func Test_shell01(tst *testing.T) {
	chk.PrintTitle("shell01: shell partition")

	top := NewTopology(Box{})
	top.Coords[0] = []float64{0, 0, 0}
	top.Coords[1] = []float64{0.5, 0, 0}
	top.Coords[2] = []float64{2.0, 0, 0}
	top.AddSegment(Segment{Id: 0, SiteIds: []int{0}})
	top.AddSegment(Segment{Id: 1, SiteIds: []int{1}})
	top.AddSegment(Segment{Id: 2, SiteIds: []int{2}})

	pol, out := top.ShellPartition(0, 1.0, 3.0)
	if len(pol) != 1 || pol[0] != 1 {
		tst.Fatalf("expected segment 1 in PolSphere, got %v", pol)
	}
	if len(out) != 1 || out[0] != 2 {
		tst.Fatalf("expected segment 2 in OutSphere, got %v", out)
	}
}
