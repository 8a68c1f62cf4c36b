// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package induct drives the per-segment self-consistent induction loop: it
// walks a segment through charge, zeroth-order field build, SOR iteration,
// energy reduction and depolarization for every available charge state
package induct

import (
	"math"

	"github.com/cpmech/ctp/inp"
	"github.com/cpmech/ctp/polar"
	"github.com/cpmech/ctp/topo"
	"github.com/cpmech/ctp/xkernel"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/utl"
)

// ConvergenceWarning flags a segment that hit the iteration cap without
// meeting tolerance. It is logged by the driver, never returned as a fatal
// error: the segment's last iterate is still reported. The reported delta
// is the mean per-site HistdU, the same quantity the avgdU convergence
// branch tests.
type ConvergenceWarning struct {
	SegmentId int
	State     int
	Iters     int
	LastDelta float64
}

func (e *ConvergenceWarning) Error() string {
	return io.Sf("segment %d state %+d did not converge after %d iterations (last avgdU=%g)",
		e.SegmentId, e.State, e.Iters, e.LastDelta)
}

// StateResult is what one charge state of one segment reports once REPORTED
type StateResult struct {
	State     int
	Energy    float64 // eV, total E + 0.5*U over the reduction scope
	EP        float64 // eV, permanent-permanent part
	EUInter   float64 // eV, induced-coupling part, inter-segment pairs
	EUIntra   float64 // eV, induced-coupling part, intra-segment pairs
	Iters     int
	Converged bool
	MaxdU     []float64 // per-iteration max HistdU, for convergence plots
}

// Result collects everything a single segment's pass reports: one
// StateResult per available charge state plus the shell bookkeeping the
// output table carries (sphere size and center of mass)
type Result struct {
	SegmentId  int
	Name       string
	SphereSize int // number of segments in PolSphere, central included
	COM        []float64
	States     []StateResult
}

// StateById returns the StateResult for the given charge state, or nil if
// that state was skipped
func (o *Result) StateById(state int) *StateResult {
	for i := range o.States {
		if o.States[i].State == state {
			return &o.States[i]
		}
	}
	return nil
}

// Driver runs the induction cycle for one segment at a time. A Driver is
// not safe for concurrent use across goroutines; the worker pool gives
// every worker its own Driver (and its own Kernel), so energy accumulation
// never crosses goroutines.
type Driver struct {
	Kernel *xkernel.Kernel
	Conv   inp.ConvParamData
	Induce bool // if false, skip the SCF and report the static-only energy
}

// NewDriver creates a Driver bound to the given kernel and convergence
// parameters, with the SCF enabled
func NewDriver(kernel *xkernel.Kernel, conv inp.ConvParamData) *Driver {
	return &Driver{Kernel: kernel, Conv: conv, Induce: true}
}

// memberSet groups the site ids the driver sweeps: the central segment's
// own sites, the flattened PolSphere environment, the flattened OutSphere,
// and the PolSphere segment-by-segment grouping the energy reduction needs
type memberSet struct {
	central []int
	polFlat []int   // PolSphere environment sites, central excluded
	outFlat []int   // OutSphere sites
	polSegs [][]int // PolSphere site ids grouped per segment, central first
	allFlat []int   // central + polFlat + outFlat
	sphFlat []int   // central + polFlat (the SCF membership)
}

func gather(top *topo.Topology, seg *topo.Segment, polSphere, outSphere []int) (m memberSet) {
	m.central = seg.SiteIds
	m.polSegs = append(m.polSegs, seg.SiteIds)
	for _, id := range polSphere {
		s := top.SegmentById(id)
		if s == nil {
			continue
		}
		m.polFlat = append(m.polFlat, s.SiteIds...)
		m.polSegs = append(m.polSegs, s.SiteIds)
	}
	for _, id := range outSphere {
		s := top.SegmentById(id)
		if s == nil {
			continue
		}
		m.outFlat = append(m.outFlat, s.SiteIds...)
	}
	m.sphFlat = append(append([]int{}, m.central...), m.polFlat...)
	m.allFlat = append(append([]int{}, m.sphFlat...), m.outFlat...)
	return
}

// Run advances one segment through the full induction cycle for every
// charge state it has, in the order neutral, anion, cation. polSphere and
// outSphere are segment ids as returned by topo.Topology.ShellPartition.
// sites is the worker's private site table indexed by id; top provides
// geometry and the segment-id -> site-id membership lookup (both are
// read-only during the parallel phase).
//
// Between states the induced dipoles are deliberately NOT depolarized: a
// charged state's SCF starts from the previous state's relaxed dipoles,
// and only the neutral state is seeded via InduceDirect. Both asymmetries
// are long-standing behavior downstream results depend on; keep them.
func (o *Driver) Run(top *topo.Topology, sites map[int]*polar.Site, seg *topo.Segment, polSphere, outSphere []int) (res Result, err error) {
	res.SegmentId = seg.Id
	res.Name = seg.Name
	res.SphereSize = len(polSphere) + 1
	if seg.COM == nil {
		top.ComputeCOM(seg)
	}
	res.COM = seg.COM

	m := gather(top, seg, polSphere, outSphere)

	// start from a clean sheet: everything neutral and depolarized
	for _, id := range m.allFlat {
		s, ok := sites[id]
		if !ok {
			continue
		}
		s.Depolarize()
		if cerr := s.Charge(polar.Neutral); cerr != nil {
			io.Pfred("warning: %v\n", cerr)
		}
	}

	for _, state := range polar.StateOrder {
		if !seg.HasState(state) {
			continue // a state the template does not populate is skipped
		}

		// CHARGED: only the central segment's sites change state; the
		// environment stays neutral
		for _, id := range m.central {
			if cerr := sites[id].Charge(state); cerr != nil {
				io.Pfred("warning: %v\n", cerr)
			}
		}

		var sr StateResult
		sr.State = state
		if o.Induce {
			sr = o.scf(sites, m, seg.Id, state)
		}

		// REPORTED
		sr.Energy = o.reduce(sites, m)
		sr.EP = o.Kernel.EP()
		sr.EUInter = o.Kernel.EUInter()
		sr.EUIntra = o.Kernel.EUIntra()
		res.States = append(res.States, sr)

		// between states: clear fields and history but carry U1 over
		for _, id := range m.sphFlat {
			s := sites[id]
			s.ResetFieldU()
			s.ResetFieldP()
			s.ResetU1Hist()
		}
	}

	// DEPOLARIZED: restore every touched site to its neutral resting state
	// so the next segment's pass starts clean
	for _, id := range m.allFlat {
		if s, ok := sites[id]; ok {
			s.Depolarize()
			s.Charge(polar.Neutral)
		}
	}

	return res, nil
}

// scf runs the FIELD0 pass and the SOR iteration for one charge state,
// returning the iteration bookkeeping (energy fields are filled by the
// caller after the reduction)
func (o *Driver) scf(sites map[int]*polar.Site, m memberSet, segId, state int) (sr StateResult) {
	sr.State = state

	// FIELD0: build the permanent field once for the whole SCF; every
	// unordered pair in the SCF membership contributes both ways in a
	// single kernel call. OutSphere sites are static-only: they feel no
	// induction and source no FieldP here, their influence enters through
	// the energy reduction alone.
	members := m.sphFlat
	for i, aid := range members {
		a := sites[aid]
		for _, bid := range members[i+1:] {
			o.Kernel.FieldPerm(a, sites[bid])
		}
	}
	if state == polar.Neutral {
		for _, id := range members {
			sites[id].InduceDirect()
		}
	}

	wSOR := o.Conv.WSorN
	if state != polar.Neutral {
		wSOR = o.Conv.WSorC
	}

	// ITER: SOR relaxation of induced dipoles until either every per-site
	// HistdU drops below tolerance or the mean drops below tolerance/10,
	// bounded by MaxIter
	iter := 0
	lastAvg := math.Inf(1)
	for iter = 1; iter <= o.Conv.MaxIter; iter++ {
		for _, id := range members {
			sites[id].ResetU1Hist()
			sites[id].ResetFieldU()
		}
		for i, aid := range members {
			a := sites[aid]
			for _, bid := range members[i+1:] {
				o.Kernel.FieldIndu(a, sites[bid])
			}
		}
		maxdU := 0.0
		sumdU := 0.0
		allBelow := true
		for _, id := range members {
			s := sites[id]
			ierr := s.Induce(wSOR)
			if ierr != nil {
				io.Pfred("warning: %v\n", ierr)
			}
			d := s.HistdU()
			if math.IsInf(d, 1) {
				// undefined ratio: converged by definition when no
				// permanent field reaches the site, otherwise treated
				// as not yet converged
				if fieldNorm2(s.FieldP) == 0 {
					d = 0
				}
			}
			if ierr != nil && fieldNorm2(s.FieldP) != 0 {
				// a rejected non-finite update is not progress
				d = math.Inf(1)
			}
			sumdU += d
			maxdU = utl.Max(maxdU, d)
			if d > o.Conv.Tolerance {
				allBelow = false
			}
		}
		avgdU := math.Inf(1)
		if len(members) > 0 {
			avgdU = sumdU / float64(len(members))
		}
		lastAvg = avgdU
		sr.MaxdU = append(sr.MaxdU, maxdU)
		if allBelow || avgdU <= o.Conv.Tolerance/10 {
			sr.Converged = true
			break
		}
		if iter == o.Conv.MaxIter {
			io.Pfred("warning: %v\n", &ConvergenceWarning{SegmentId: segId, State: state, Iters: iter, LastDelta: lastAvg})
		}
	}
	sr.Iters = utl.Imin(iter, o.Conv.MaxIter)
	return
}

// reduce accumulates the interaction energy for the current state: every
// unordered segment pair within PolSphere (central included) contributes
// via EnergyInter, plus the central segment crossed with the OutSphere's
// static sites. Pairs within one segment are excluded from the reduction;
// the kernel's EnergyIntra path exists for callers that want the
// intra-segment coupling separately, but it does not enter the reported
// energy. When the SCF is disabled the reduction narrows to central x
// PolSphere, the static-only scope.
func (o *Driver) reduce(sites map[int]*polar.Site, m memberSet) float64 {
	o.Kernel.ResetEnergy()
	eTot := 0.0
	if !o.Induce {
		for _, aid := range m.central {
			a := sites[aid]
			for _, bid := range m.polFlat {
				eTot += o.Kernel.EnergyInter(a, sites[bid])
			}
		}
		return eTot
	}
	for i, segA := range m.polSegs {
		for _, segB := range m.polSegs[i+1:] {
			for _, aid := range segA {
				a := sites[aid]
				for _, bid := range segB {
					eTot += o.Kernel.EnergyInter(a, sites[bid])
				}
			}
		}
	}
	for _, aid := range m.central {
		a := sites[aid]
		for _, bid := range m.outFlat {
			eTot += o.Kernel.EnergyInter(a, sites[bid])
		}
	}
	return eTot
}

func fieldNorm2(f []float64) float64 {
	return f[0]*f[0] + f[1]*f[1] + f[2]*f[2]
}
