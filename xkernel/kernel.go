// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package xkernel implements the stateless pair-interaction tensors: the
// electric field a site's permanent and induced multipoles generate at
// another site, Thole-damped where the pair shares a polarizable sphere,
// and the running interaction-energy accumulators the induction driver
// reports at convergence
package xkernel

import (
	"github.com/cpmech/ctp/polar"
	"github.com/cpmech/ctp/topo"
	"github.com/cpmech/gosl/utl"
)

// Kernel is a stateless-formula, statefully-accumulating pair engine: the
// tensor math never depends on anything but the two sites and the box, but
// a Kernel carries one set of energy accumulators per SCF pass so that a
// worker goroutine can own a private Kernel and sum without contending on a
// shared mutex
type Kernel struct {
	Box     topo.Box
	ExpDamp float64 // Thole exponent a; 0 disables damping entirely

	ep      float64 // accumulated permanent-permanent energy, eV
	euInter float64 // accumulated induced-coupling energy, inter-segment pairs, eV
	euIntra float64 // accumulated induced-coupling energy, intra-segment pairs, eV
}

// NewKernel creates a Kernel bound to the given box and Thole exponent
func NewKernel(box topo.Box, expDamp float64) *Kernel {
	return &Kernel{Box: box, ExpDamp: expDamp}
}

// ResetEnergy zeroes all three accumulators; the driver calls it at the
// start of every charge state's energy reduction
func (o *Kernel) ResetEnergy() {
	o.ep = 0
	o.euInter = 0
	o.euIntra = 0
}

// EP returns the accumulated permanent-permanent interaction energy, eV
func (o *Kernel) EP() float64 { return o.ep }

// EUInter returns the accumulated induced-coupling energy summed over
// inter-segment pairs (via EnergyInter), eV
func (o *Kernel) EUInter() float64 { return o.euInter }

// EUIntra returns the accumulated induced-coupling energy summed over
// intra-segment pairs (via EnergyIntra), eV
func (o *Kernel) EUIntra() float64 { return o.euIntra }

// int2eV converts a (charge in e) x (charge in e) / (distance in nm)
// quantity into eV: 1/(4*pi*eps0) * e / 1nm, eps0 = 8.854187817e-12 F/m
const int2eV = 1.4399645471595175

// pairGeometry returns the minimum-image displacement from site b to site
// a (d = posA - posB, wrapped), its length r, and the unit vector e = d/r
func (o *Kernel) pairGeometry(a, b *polar.Site) (e []float64, r float64) {
	d, r := o.Box.ShortestConnect(b.Pos, a.Pos)
	if r < 1e-12 {
		return []float64{0, 0, 0}, r
	}
	e = scale3(d, 1/r)
	return
}

// dampedPermFieldAt returns the field b's permanent multipoles (charge,
// and where present, dipole and quadrupole) generate at a's location, with
// Thole screening factors applied per radial order: l3 on the 1/r^2 charge
// term and the dipole's frame part, l5 on the dipole's projection part and
// the quadrupole's frame part, l7 on the quadrupole's projection part.
// Passing l3=l5=l7=1 yields the bare field.
func dampedPermFieldAt(e []float64, r float64, b *polar.Site, l3, l5, l7 float64) []float64 {
	r2 := r * r
	r3 := r2 * r
	r4 := r3 * r

	field := scale3(e, l3*b.Q0/r2)

	if b.Rank >= 1 {
		pe := utl.Dot3d(b.Q1, e)
		dip := scale3(sub3(scale3(e, 3*l5*pe), scale3(b.Q1, l3)), 1/r3)
		field = add3(field, dip)
	}

	if b.Rank >= 2 {
		theta := quadAsMatrix(b.Q2[0], b.Q2[1], b.Q2[2], b.Q2[3], b.Q2[4])
		te := matvec3(theta, e)
		ete := utl.Dot3d(e, te)
		quad := scale3(sub3(scale3(e, 5*l7*ete), scale3(te, 2*l5)), 1/r4)
		field = add3(field, quad)
	}

	return field
}

// fieldPermAt is the undamped permanent field, used by the SCF field build
// and by the permanent-energy expansion; e, r come from an already-computed
// pairGeometry so callers that need both the field and the energy in the
// same pass don't recompute the geometry twice.
func fieldPermAt(e []float64, r float64, b *polar.Site) []float64 {
	return dampedPermFieldAt(e, r, b, 1, 1, 1)
}

// FieldPerm accumulates, into a's and b's FieldP, the potential gradient
// each site's permanent multipoles generate at the other -- the NEGATIVE of
// the physical field, which is what makes induced = -alpha * field hold in
// polar.Site.InduceDirect/Induce. It must be invoked exactly once per
// unordered pair per FIELD0 pass: FieldP is not reset between SCF
// iterations, so a repeated call would count the pair twice. Permanent-permanent interactions are not
// Thole-damped: the damping model screens the polarization catastrophe
// between induced dipoles, not the nuclear framework's own field.
func (o *Kernel) FieldPerm(a, b *polar.Site) {
	e, r := o.pairGeometry(a, b)
	if r < 1e-12 {
		return
	}
	fa := fieldPermAt(e, r, b)
	fb := fieldPermAt(scale3(e, -1), r, a)
	for k := 0; k < 3; k++ {
		a.FieldP[k] -= fa[k]
		b.FieldP[k] -= fb[k]
	}
}

// fieldInduAt returns the Thole-damped field b's current induced dipole
// generates at a's location, reusing an already-computed pairGeometry.
func (o *Kernel) fieldInduAt(e []float64, r float64, a, b *polar.Site) []float64 {
	r3 := r * r * r

	l3, l5 := 1.0, 1.0
	if o.ExpDamp > 0 && a.Alpha > 0 && b.Alpha > 0 {
		u3 := u3Of(r, a.Alpha, b.Alpha)
		l3, l5, _, _ = lambda3579(o.ExpDamp, u3)
	}

	pe := utl.Dot3d(b.U1, e)
	return scale3(sub3(scale3(e, 3*l5*pe), scale3(b.U1, l3)), 1/r3)
}

// FieldIndu accumulates, into a's and b's FieldU, the Thole-damped
// potential gradient (negative physical field, same convention as
// FieldPerm) each site's current induced dipole generates at the other;
// like FieldPerm it is invoked once per unordered pair and iteration.
// Pairs with zero polarizability on either side (Alpha<=0) or with damping
// disabled (ExpDamp<=0) fall back to the bare 1/r^3 dipole tensor.
func (o *Kernel) FieldIndu(a, b *polar.Site) {
	e, r := o.pairGeometry(a, b)
	if r < 1e-12 {
		return
	}
	fa := o.fieldInduAt(e, r, a, b)
	fb := o.fieldInduAt(scale3(e, -1), r, b, a)
	for k := 0; k < 3; k++ {
		a.FieldU[k] -= fa[k]
		b.FieldU[k] -= fb[k]
	}
}

// FieldInduAlpha is the damped induced-dipole contribution of b onto a
// alone (no reciprocal accumulation), in the same gradient sign convention
// as FieldIndu; used by diagnostic tools that probe one site's response
// field
func (o *Kernel) FieldInduAlpha(a, b *polar.Site) {
	e, r := o.pairGeometry(a, b)
	if r < 1e-12 {
		return
	}
	f := o.fieldInduAt(e, r, a, b)
	for k := 0; k < 3; k++ {
		a.FieldU[k] -= f[k]
	}
}

// PotentialPerm returns the scalar potential b's permanent multipoles
// generate at the point pos; it is also the finite-difference reference
// the field tests derive FieldPerm from
func (o *Kernel) PotentialPerm(pos []float64, b *polar.Site) float64 {
	d, r := o.Box.ShortestConnect(b.Pos, pos)
	if r < 1e-12 {
		return 0
	}
	e := scale3(d, 1/r)
	phi := b.Q0 / r
	if b.Rank >= 1 {
		phi += utl.Dot3d(b.Q1, e) / (r * r)
	}
	if b.Rank >= 2 {
		theta := quadAsMatrix(b.Q2[0], b.Q2[1], b.Q2[2], b.Q2[3], b.Q2[4])
		phi += utl.Dot3d(e, matvec3(theta, e)) / (r * r * r)
	}
	return phi
}

// FieldPermESF returns the permanent-multipole field of b evaluated at an
// arbitrary probe point (electrostatic-field sampling for grid tools)
func (o *Kernel) FieldPermESF(pos []float64, b *polar.Site) []float64 {
	d, r := o.Box.ShortestConnect(b.Pos, pos)
	if r < 1e-12 {
		return []float64{0, 0, 0}
	}
	return fieldPermAt(scale3(d, 1/r), r, b)
}

// EnergyInter returns E + 0.5*U for the pair (a,b) belonging to different
// segments, where E is the permanent-permanent multipole energy and U is
// the induced-coupling energy; E is accumulated into EP and U into
// EUInter. The 0.5 reflects the work already spent polarizing the dipoles.
func (o *Kernel) EnergyInter(a, b *polar.Site) float64 {
	e, u := o.pairEnergyTerms(a, b)
	o.ep += e
	o.euInter += u
	return e + 0.5*u
}

// EnergyIntra is identical to EnergyInter but accumulates U into EUIntra;
// it is used for pairs sharing one segment, so intra-segment coupling can
// be accounted separately from the environment's.
func (o *Kernel) EnergyIntra(a, b *polar.Site) float64 {
	e, u := o.pairEnergyTerms(a, b)
	o.ep += e
	o.euIntra += u
	return e + 0.5*u
}

// pairEnergyTerms returns the permanent-permanent energy E and the
// induced-coupling energy U for the pair (a,b), each counted once (not
// double), in eV.
func (o *Kernel) pairEnergyTerms(a, b *polar.Site) (e, u float64) {
	e = o.permEnergy(a, b)
	u = o.induCoupling(a, b)
	return
}

// permEnergy evaluates the full permanent-multipole pairwise interaction
// energy up to rank (2,2) via the one-sided potential/field/field-gradient
// expansion: U(a,b) = qa*phi_b(A) - pa.Eb(A) + (1/3)*Theta_a:Gb(A), where
// phi_b, Eb and Gb are b's permanent scalar potential, field and field
// Hessian evaluated at a's location. Every (l1,l2) combination with
// l1,l2 in {0,1,2} is covered exactly once.
func (o *Kernel) permEnergy(a, b *polar.Site) float64 {
	e, r := o.pairGeometry(a, b)
	if r < 1e-12 {
		return 0
	}
	r2 := r * r
	r3 := r2 * r
	r4 := r3 * r
	r5 := r4 * r

	phi := b.Q0 / r

	needE := a.Rank >= 1
	var Eb []float64
	if needE {
		Eb = scale3(e, b.Q0/r2)
	}

	var thetaB [][]float64
	if b.Rank >= 2 {
		thetaB = quadAsMatrix(b.Q2[0], b.Q2[1], b.Q2[2], b.Q2[3], b.Q2[4])
	}

	var ete float64 // e^T Theta_b e, reused by the quadrupole-quadrupole term below
	if b.Rank >= 1 {
		pe := utl.Dot3d(b.Q1, e)
		phi += pe / r2
		if needE {
			dip := scale3(sub3(scale3(e, 3*pe), b.Q1), 1/r3)
			Eb = add3(Eb, dip)
		}
	}
	if b.Rank >= 2 {
		te := matvec3(thetaB, e)
		ete = utl.Dot3d(e, te)
		phi += ete / r3
		if needE {
			quad := scale3(sub3(scale3(e, 5*ete), scale3(te, 2)), 1/r4)
			Eb = add3(Eb, quad)
		}
	}

	energy := a.Q0 * phi

	if a.Rank >= 1 {
		energy -= utl.Dot3d(a.Q1, Eb)
	}

	if a.Rank >= 2 {
		thetaA := quadAsMatrix(a.Q2[0], a.Q2[1], a.Q2[2], a.Q2[3], a.Q2[4])
		P := utl.Dot3d(e, matvec3(thetaA, e)) // e^T Theta_a e

		if b.Q0 != 0 {
			energy += b.Q0 * P / r3
		}
		if b.Rank >= 1 {
			Y := utl.Dot3d(e, matvec3(thetaA, b.Q1)) // e^T Theta_a pb
			energy += (-2*Y + 5*utl.Dot3d(b.Q1, e)*P) / r4
		}
		if b.Rank >= 2 {
			C := traceProduct(thetaA, thetaB)                 // Theta_a : Theta_b
			W := utl.Dot3d(e, matvec3(thetaA, matvec3(thetaB, e))) // e^T Theta_a Theta_b e
			energy += 2 * (C - 10*W + 17.5*ete*P) / (3 * r5)
		}
	}

	return int2eV * energy
}

// induCoupling evaluates the pairwise induction energy
// U(a,b) = -[a.U1.Eb_perm(A) + b.U1.Ea_perm(B)], the energy of each site's
// induced dipole in the other's Thole-damped permanent field, evaluated
// fresh (not from the accumulated FieldP/FieldU, which may include
// contributions from sites outside this pair). Induced-induced coupling
// does not enter: the work spent polarizing against it is already captured
// by the 0.5 prefactor the energy getters apply to U.
func (o *Kernel) induCoupling(a, b *polar.Site) float64 {
	eAB, rAB := o.pairGeometry(a, b)
	if rAB < 1e-12 {
		return 0
	}
	eBA := scale3(eAB, -1)

	l3, l5, l7 := 1.0, 1.0, 1.0
	if o.ExpDamp > 0 && a.Alpha > 0 && b.Alpha > 0 {
		l3, l5, l7, _ = lambda3579(o.ExpDamp, u3Of(rAB, a.Alpha, b.Alpha))
	}
	ebAtA := dampedPermFieldAt(eAB, rAB, b, l3, l5, l7)
	eaAtB := dampedPermFieldAt(eBA, rAB, a, l3, l5, l7)

	return -int2eV * (utl.Dot3d(a.U1, ebAtA) + utl.Dot3d(b.U1, eaAtB))
}
