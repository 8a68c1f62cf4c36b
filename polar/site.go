// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package polar implements the per-site multipole/polarizability record and
// the site-level primitives the SCF induction loop drives: charging,
// depolarization, and the direct/SOR induced-dipole updates
package polar

import (
	"math"

	"github.com/cpmech/gosl/chk"
)

// charge states: anion, neutral, cation
const (
	Anion   = -1
	Neutral = 0
	Cation  = +1
)

// StateOrder is the sequence the induction driver walks the charge states
// in: neutral first (it seeds the induced dipoles), then anion, then cation
var StateOrder = []int{Neutral, Anion, Cation}

// MissingStateError is raised when a requested charge state has no entry in
// a site's per-state moment table. The induction driver recovers from it by
// skipping that state for that segment rather than aborting the whole run
type MissingStateError struct {
	SiteId int
	State  int
}

func (e *MissingStateError) Error() string {
	return chk.Err("site %d has no moments defined for state %+d", e.SiteId, e.State).Error()
}

// NumericWarning flags an induced dipole update that produced a non-finite
// value (NaN/Inf). It is logged, not fatal; the driver treats the
// iteration as not-yet-converged unless the field that produced it was also
// zero
type NumericWarning struct {
	SiteId int
	Reason string
}

func (e *NumericWarning) Error() string {
	return chk.Err("site %d: numeric warning: %s", e.SiteId, e.Reason).Error()
}

// StateMoments is the multipole/polarizability set one site carries for one
// charge state: spherical components up to rank 2 plus the isotropic dipole
// polarizability
type StateMoments struct {
	Q0    float64    // permanent charge, e
	Q1    []float64  // permanent dipole (rank>=1): Q1x, Q1y, Q1z, e.nm
	Q2    [5]float64 // permanent quadrupole (rank==2): Q20,Q21c,Q21s,Q22c,Q22s, e.nm^2
	Alpha float64    // isotropic dipole polarizability, nm^3
}

// Site is one PolarSite: a point multipole expansion per charge state plus
// the active slots Charge copies into, the field accumulators the SCF loop
// updates every iteration, and the small history needed for convergence
// checks
type Site struct {
	Id      int       // arena index
	Element string    // chemical element, used to look up default Alpha
	Pos     []float64 // Cartesian position, nm
	Rank    int       // multipole rank: 0 (charge), 1 (+dipole), 2 (+quadrupole)

	States map[int]*StateMoments // per-state moment sets, keyed -1/0/+1

	// active slots, copied from States by Charge
	Q0    float64
	Q1    []float64
	Q2    [5]float64
	Alpha float64

	U1     []float64 // induced dipole, current SCF estimate
	U1Hist []float64 // induced dipole from the previous SCF iteration

	// FieldP/FieldU accumulate the potential gradient (the negative of
	// the physical field), so that induced = -alpha * field holds in
	// InduceDirect and Induce
	FieldP []float64 // from neighbors' permanent multipoles
	FieldU []float64 // from neighbors' induced dipoles
}

// NewSite allocates a Site with all vector fields zeroed
func NewSite(id int, element string, pos []float64) *Site {
	return &Site{
		Id:      id,
		Element: element,
		Pos:     pos,
		States:  make(map[int]*StateMoments),
		Q1:      make([]float64, 3),
		U1:      make([]float64, 3),
		U1Hist:  make([]float64, 3),
		FieldP:  make([]float64, 3),
		FieldU:  make([]float64, 3),
	}
}

// SetState registers the moment set for one charge state. The rank
// invariants are enforced here: a rank-0 site must not carry dipole or
// quadrupole entries, a rank-1 site must not carry quadrupole entries
func (o *Site) SetState(state int, m StateMoments) error {
	if o.Rank < 1 && norm2(m.Q1) > 0 {
		return chk.Err("site %d (rank %d) must not carry a dipole", o.Id, o.Rank)
	}
	if o.Rank < 2 {
		for _, q := range m.Q2 {
			if q != 0 {
				return chk.Err("site %d (rank %d) must not carry a quadrupole", o.Id, o.Rank)
			}
		}
	}
	cp := m
	cp.Q1 = make([]float64, 3)
	if m.Q1 != nil {
		copy(cp.Q1, m.Q1)
	}
	o.States[state] = &cp
	return nil
}

// HasState reports whether moments are registered for the given charge state
func (o *Site) HasState(state int) bool {
	_, ok := o.States[state]
	return ok
}

// Charge copies the given state's moments and polarizability into the
// active slots. If the state has no entry, the active slots are zeroed and
// a *MissingStateError is returned so the caller can skip the state
func (o *Site) Charge(state int) error {
	m, ok := o.States[state]
	if !ok {
		o.Q0 = 0
		o.Q1[0], o.Q1[1], o.Q1[2] = 0, 0, 0
		o.Q2 = [5]float64{}
		o.Alpha = 0
		return &MissingStateError{SiteId: o.Id, State: state}
	}
	o.Q0 = m.Q0
	copy(o.Q1, m.Q1)
	o.Q2 = m.Q2
	o.Alpha = m.Alpha
	return nil
}

// Clone returns a deep copy of the site, used by the worker pool to give
// every worker its private replica array
func (o *Site) Clone() *Site {
	c := NewSite(o.Id, o.Element, []float64{o.Pos[0], o.Pos[1], o.Pos[2]})
	c.Rank = o.Rank
	for state, m := range o.States {
		c.States[state] = &StateMoments{Q0: m.Q0, Q1: []float64{m.Q1[0], m.Q1[1], m.Q1[2]}, Q2: m.Q2, Alpha: m.Alpha}
	}
	c.Q0 = o.Q0
	copy(c.Q1, o.Q1)
	c.Q2 = o.Q2
	c.Alpha = o.Alpha
	copy(c.U1, o.U1)
	copy(c.U1Hist, o.U1Hist)
	copy(c.FieldP, o.FieldP)
	copy(c.FieldU, o.FieldU)
	return c
}

// Depolarize resets the induced dipole, its history and both field
// accumulators to zero, returning the site to its resting state
func (o *Site) Depolarize() {
	for k := 0; k < 3; k++ {
		o.U1[k] = 0
		o.U1Hist[k] = 0
		o.FieldP[k] = 0
		o.FieldU[k] = 0
	}
}

// ResetFieldP zeroes the permanent-field accumulator, done between charge
// states before the next FIELD0 pass
func (o *Site) ResetFieldP() {
	o.FieldP[0], o.FieldP[1], o.FieldP[2] = 0, 0, 0
}

// ResetFieldU zeroes the induced-field accumulator, done at the start of
// every SCF iteration before the induced-dipole field sweep
func (o *Site) ResetFieldU() {
	o.FieldU[0], o.FieldU[1], o.FieldU[2] = 0, 0, 0
}

// ResetU1Hist copies the current induced dipole into U1Hist, taken as the
// reference point for the next iteration's convergence check
func (o *Site) ResetU1Hist() {
	copy(o.U1Hist, o.U1)
}

// InduceDirect sets the induced dipole directly from the permanent field
// (U1 = -alpha*FieldP; since FieldP holds the potential gradient, the
// induced dipole points along the physical field), used once to seed the
// neutral state before any SCF iteration runs
func (o *Site) InduceDirect() {
	for k := 0; k < 3; k++ {
		o.U1[k] = -o.Alpha * o.FieldP[k]
	}
}

// Induce performs one SOR-relaxed induced-dipole update:
//   U1_new = (1-w)*U1_old + w*(-alpha*(FieldP+FieldU))
// wSOR is wSOR_N or wSOR_C depending on whether the segment's active state
// is neutral or charged. Returns a *NumericWarning if the update produced a
// non-finite component; U1 is left unchanged in that case.
func (o *Site) Induce(wSOR float64) error {
	next := make([]float64, 3)
	for k := 0; k < 3; k++ {
		target := -o.Alpha * (o.FieldP[k] + o.FieldU[k])
		next[k] = (1-wSOR)*o.U1[k] + wSOR*target
		if math.IsNaN(next[k]) || math.IsInf(next[k], 0) {
			return &NumericWarning{SiteId: o.Id, Reason: "non-finite induced dipole component"}
		}
	}
	copy(o.U1, next)
	return nil
}

// HistdU returns the relative change in U1 since ResetU1Hist was last
// called: |U1_latest - U1_previous| / |U1_latest|. A site whose induced
// dipole is exactly zero reports +Inf, since the ratio is undefined; the
// driver resolves that per the error taxonomy (converged by definition when
// FieldP is also zero, not-yet-converged otherwise). A latest dipole that
// is merely immeasurably small (below 1e-20 in magnitude, but not exactly
// zero) reports 0 rather than a noisy ratio.
func (o *Site) HistdU() float64 {
	latest := math.Sqrt(norm2(o.U1))
	if latest == 0 {
		return math.Inf(1)
	}
	if latest < 1e-20 {
		return 0
	}
	d := sub(o.U1, o.U1Hist)
	return math.Sqrt(norm2(d)) / latest
}

func norm2(a []float64) float64 {
	if a == nil {
		return 0
	}
	return a[0]*a[0] + a[1]*a[1] + a[2]*a[2]
}

func sub(a, b []float64) []float64 {
	return []float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}
