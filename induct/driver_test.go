// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package induct

import (
	"math"
	"testing"

	"github.com/cpmech/ctp/inp"
	"github.com/cpmech/ctp/polar"
	"github.com/cpmech/ctp/topo"
	"github.com/cpmech/ctp/xkernel"
	"github.com/cpmech/gosl/chk"
)

// 1/(4*pi*eps0)*e*1e9, the Coulomb energy of two unit charges at 1nm in eV
const coulomb1nm = 1.4399645471595175

func defConv() inp.ConvParamData {
	return inp.ConvParamData{WSorN: 0.75, WSorC: 0.75, MaxIter: 512, Tolerance: 1e-3}
}

// chargeSite builds a rank-0 site with a neutral-state charge and
// polarizability
func chargeSite(id int, q, alpha float64, pos []float64) *polar.Site {
	s := polar.NewSite(id, "C", pos)
	s.SetState(polar.Neutral, polar.StateMoments{Q0: q, Alpha: alpha})
	return s
}

// pairSystem builds a two-segment topology (one site each) and its site
// table
func pairSystem(qa, qb, alpha float64, r float64) (*topo.Topology, map[int]*polar.Site, *topo.Segment) {
	top := topo.NewTopology(topo.Box{})
	a := chargeSite(0, qa, alpha, []float64{0, 0, 0})
	b := chargeSite(1, qb, alpha, []float64{r, 0, 0})
	top.Coords[0] = a.Pos
	top.Coords[1] = b.Pos
	top.AddSegment(topo.Segment{Id: 0, Name: "A", SiteIds: []int{0}, States: []int{polar.Neutral}})
	top.AddSegment(topo.Segment{Id: 1, Name: "B", SiteIds: []int{1}, States: []int{polar.Neutral}})
	return top, map[int]*polar.Site{0: a, 1: b}, top.SegmentById(0)
}

// Test_driver01 runs the neutral state on a system with all moments zero:
// the energy must be exactly zero and, since no permanent field reaches any
// site, every site is converged by definition on the first iteration
func Test_driver01(tst *testing.T) {
	chk.PrintTitle("driver01: all-zero moments give exactly zero energy")

	top, sites, seg := pairSystem(0, 0, 0, 1.0)
	d := NewDriver(xkernel.NewKernel(topo.Box{}, 0), defConv())

	res, err := d.Run(top, sites, seg, []int{1}, nil)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	sr := res.StateById(polar.Neutral)
	if sr == nil {
		tst.Fatalf("expected a neutral-state result")
	}
	if !sr.Converged || sr.Iters != 1 {
		tst.Fatalf("expected convergence on iteration 1, got converged=%v iters=%d", sr.Converged, sr.Iters)
	}
	if sr.Energy != 0 {
		tst.Fatalf("expected exactly zero energy, got %g", sr.Energy)
	}
}

// Test_driver02 runs the polarizable-pair seed scenario: q=+1 and q=-1 at
// 1nm, alpha=1e-3 nm^3 each, Thole a=0.39, SOR w=0.75, tol=1e-6. The SCF
// must converge within 20 iterations and the resulting energy must lie
// strictly below the static Coulomb value (induction always lowers).
func Test_driver02(tst *testing.T) {
	chk.PrintTitle("driver02: polarizable pair converges and lowers energy")

	top, sites, seg := pairSystem(1.0, -1.0, 1e-3, 1.0)
	conv := defConv()
	conv.Tolerance = 1e-6
	d := NewDriver(xkernel.NewKernel(topo.Box{}, 0.39), conv)

	res, err := d.Run(top, sites, seg, []int{1}, nil)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	sr := res.StateById(polar.Neutral)
	if sr == nil {
		tst.Fatalf("expected a neutral-state result")
	}
	if !sr.Converged || sr.Iters > 20 {
		tst.Fatalf("expected convergence within 20 iterations, got converged=%v iters=%d", sr.Converged, sr.Iters)
	}
	if sr.Energy >= -coulomb1nm {
		tst.Fatalf("expected induction to lower the energy below %g, got %g", -coulomb1nm, sr.Energy)
	}
	if sr.Energy < -1.5*coulomb1nm {
		tst.Fatalf("induction lowering unphysically large: %g", sr.Energy)
	}
	chk.AnaNum(tst, "EP is the static part", 1e-6, sr.EP, -coulomb1nm, chk.Verbose)
}

// Test_driver03 checks the missing-state seed scenario: a segment whose
// template populates only the neutral state reports no anion/cation entry
// but the neutral state normally
func Test_driver03(tst *testing.T) {
	chk.PrintTitle("driver03: missing charge state is skipped silently")

	top, sites, seg := pairSystem(0.1, -0.1, 1e-3, 1.0)
	d := NewDriver(xkernel.NewKernel(topo.Box{}, 0.39), defConv())

	res, err := d.Run(top, sites, seg, []int{1}, nil)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	if res.StateById(polar.Anion) != nil || res.StateById(polar.Cation) != nil {
		tst.Fatalf("expected anion/cation to be skipped")
	}
	if res.StateById(polar.Neutral) == nil {
		tst.Fatalf("expected the neutral state to be reported")
	}
}

// Test_driver04 checks the static-only path (control.induce=false): no SCF
// runs and the energy is the bare central-x-PolSphere Coulomb sum
func Test_driver04(tst *testing.T) {
	chk.PrintTitle("driver04: static-only energy")

	top, sites, seg := pairSystem(1.0, -1.0, 1e-3, 1.0)
	d := NewDriver(xkernel.NewKernel(topo.Box{}, 0.39), defConv())
	d.Induce = false

	res, err := d.Run(top, sites, seg, []int{1}, nil)
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	sr := res.StateById(polar.Neutral)
	if sr == nil {
		tst.Fatalf("expected a neutral-state result")
	}
	if sr.Iters != 0 {
		tst.Fatalf("expected no SCF iterations, got %d", sr.Iters)
	}
	chk.AnaNum(tst, "static Coulomb energy", 1e-12, sr.Energy, -coulomb1nm, chk.Verbose)
}

// Test_driver05 checks the SOR fixed-point property: restarting the
// induced-dipole update from a fully converged configuration must produce
// a first convergence metric at most tolerance/10
func Test_driver05(tst *testing.T) {
	chk.PrintTitle("driver05: SOR idempotence at the fixed point")

	k := xkernel.NewKernel(topo.Box{}, 0.39)
	a := chargeSite(0, 1.0, 1e-3, []float64{0, 0, 0})
	b := chargeSite(1, -1.0, 1e-3, []float64{1, 0, 0})
	a.Charge(polar.Neutral)
	b.Charge(polar.Neutral)

	k.FieldPerm(a, b)
	a.InduceDirect()
	b.InduceDirect()

	relax := func() {
		a.ResetU1Hist()
		b.ResetU1Hist()
		a.ResetFieldU()
		b.ResetFieldU()
		k.FieldIndu(a, b)
		a.Induce(0.75)
		b.Induce(0.75)
	}
	for i := 0; i < 200; i++ {
		relax()
	}

	relax()
	const tol = 1e-6
	if a.HistdU() > tol/10 || b.HistdU() > tol/10 {
		tst.Fatalf("expected fixed point, got HistdU %g and %g", a.HistdU(), b.HistdU())
	}

	// induced dipoles must point along the connecting axis
	for _, s := range []*polar.Site{a, b} {
		if math.Abs(s.U1[1]) > 1e-15 || math.Abs(s.U1[2]) > 1e-15 {
			tst.Fatalf("expected induced dipole along x, got %v", s.U1)
		}
		if math.Abs(s.U1[0]) == 0 {
			tst.Fatalf("expected nonzero induced dipole")
		}
	}
}

// Test_driver06 checks per-segment determinism: running the same segment
// on two independently cloned site tables yields bitwise-identical
// energies and iteration counts
func Test_driver06(tst *testing.T) {
	chk.PrintTitle("driver06: bitwise per-segment determinism")

	run := func() Result {
		top, sites, seg := pairSystem(1.0, -1.0, 1e-3, 1.0)
		replicas := make(map[int]*polar.Site, len(sites))
		for id, s := range sites {
			replicas[id] = s.Clone()
		}
		conv := defConv()
		conv.Tolerance = 1e-6
		d := NewDriver(xkernel.NewKernel(topo.Box{}, 0.39), conv)
		res, err := d.Run(top, replicas, seg, []int{1}, nil)
		if err != nil {
			tst.Fatalf("unexpected error: %v", err)
		}
		return res
	}

	r1, r2 := run(), run()
	s1, s2 := r1.StateById(polar.Neutral), r2.StateById(polar.Neutral)
	if s1.Energy != s2.Energy || s1.Iters != s2.Iters {
		tst.Fatalf("expected bitwise-identical results, got (%v,%d) vs (%v,%d)",
			s1.Energy, s1.Iters, s2.Energy, s2.Iters)
	}
}

// Test_driver07 checks the multi-state sequence on a segment carrying all
// three states: each state reports its own energy, the sphere size counts
// the central segment, and the OutSphere contributes statics to the central
// energy
func Test_driver07(tst *testing.T) {
	chk.PrintTitle("driver07: multi-state pass with outer shell")

	top := topo.NewTopology(topo.Box{})
	center := polar.NewSite(0, "C", []float64{0, 0, 0})
	center.SetState(polar.Neutral, polar.StateMoments{Q0: 0, Alpha: 1.75e-3})
	center.SetState(polar.Anion, polar.StateMoments{Q0: -1, Alpha: 1.75e-3})
	center.SetState(polar.Cation, polar.StateMoments{Q0: +1, Alpha: 1.75e-3})
	near := chargeSite(1, -0.2, 1e-3, []float64{1, 0, 0})
	far := chargeSite(2, 0.5, 1e-3, []float64{4, 0, 0})
	top.Coords[0], top.Coords[1], top.Coords[2] = center.Pos, near.Pos, far.Pos
	top.AddSegment(topo.Segment{Id: 0, Name: "X", SiteIds: []int{0},
		States: []int{polar.Neutral, polar.Anion, polar.Cation}})
	top.AddSegment(topo.Segment{Id: 1, Name: "E", SiteIds: []int{1}, States: []int{polar.Neutral}})
	top.AddSegment(topo.Segment{Id: 2, Name: "F", SiteIds: []int{2}, States: []int{polar.Neutral}})
	sites := map[int]*polar.Site{0: center, 1: near, 2: far}

	conv := defConv()
	conv.Tolerance = 1e-6
	d := NewDriver(xkernel.NewKernel(topo.Box{}, 0.39), conv)

	res, err := d.Run(top, sites, top.SegmentById(0), []int{1}, []int{2})
	if err != nil {
		tst.Fatalf("unexpected error: %v", err)
	}
	if len(res.States) != 3 {
		tst.Fatalf("expected 3 state results, got %d", len(res.States))
	}
	if res.SphereSize != 2 {
		tst.Fatalf("expected sphere size 2, got %d", res.SphereSize)
	}

	// anion: central -1 sees -0.2 at 1nm (repulsive) and +0.5 at 4nm
	// (attractive, statics only); the static part of the energy is known
	anion := res.StateById(polar.Anion)
	staticAnion := coulomb1nm*(-1)*(-0.2)/1 + coulomb1nm*(-1)*0.5/4
	chk.AnaNum(tst, "anion EP", 1e-9, anion.EP, staticAnion, chk.Verbose)

	// neutral central: only the near/far environment charges interact,
	// but near and far sit in different shells, so the PolSphere pair sum
	// contains no environment-environment term here and the outer shell
	// couples to the (neutral) central only
	neutral := res.StateById(polar.Neutral)
	chk.AnaNum(tst, "neutral EP", 1e-9, neutral.EP, 0, chk.Verbose)
}
