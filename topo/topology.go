// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

// Segment groups the PolarSite ids that make up one rigid conjugated unit
// (a molecule or a fragment of one), together with an optional sub-fragment
// split of those ids
type Segment struct {
	Id        int       // segment id, as it appears in the geometry file
	Name      string    // segment name, e.g. "DCV5T"
	SiteIds   []int     // site ids (keys of Topology.Coords) belonging to this segment
	Fragments [][]int   // sub-groupings of SiteIds (rigid sub-fragments), may be nil
	COM       []float64 // center of mass, nm; filled by Topology.ComputeCOM

	States   []int           // available charge states (-1/0/+1), from the template
	Energies map[int]float64 // reported energy per state, eV; filled after the run
}

// HasState reports whether the segment's template populates the given
// charge state; a state that is not populated is silently skipped by the
// induction driver
func (o *Segment) HasState(state int) bool {
	for _, s := range o.States {
		if s == state {
			return true
		}
	}
	return false
}

// SetEnergy records the reported energy for one charge state
func (o *Segment) SetEnergy(state int, energy float64) {
	if o.Energies == nil {
		o.Energies = make(map[int]float64)
	}
	o.Energies[state] = energy
}

// Topology is the flat, ordered collection of segments and site positions
// that the geometry layer hands to the induction driver. It owns no
// physics: charges, multipoles and polarizabilities live in polar.Site
type Topology struct {
	Box      Box
	Segments []Segment
	Coords   map[int][]float64 // site id -> Cartesian position, nm
}

// NewTopology creates an empty topology over the given periodic box
func NewTopology(box Box) *Topology {
	return &Topology{
		Box:    box,
		Coords: make(map[int][]float64),
	}
}

// AddSegment appends a segment to the topology
func (o *Topology) AddSegment(seg Segment) {
	o.Segments = append(o.Segments, seg)
}

// SegmentById returns a pointer to the segment with the given id, or nil
func (o *Topology) SegmentById(id int) *Segment {
	for i := range o.Segments {
		if o.Segments[i].Id == id {
			return &o.Segments[i]
		}
	}
	return nil
}

// ComputeCOM fills in seg.COM as the unweighted average of its site
// coordinates; used only to report shell membership, never in the energy
func (o *Topology) ComputeCOM(seg *Segment) {
	com := make([]float64, 3)
	if len(seg.SiteIds) == 0 {
		seg.COM = com
		return
	}
	for _, id := range seg.SiteIds {
		p := o.Coords[id]
		com[0] += p[0]
		com[1] += p[1]
		com[2] += p[2]
	}
	n := float64(len(seg.SiteIds))
	com[0] /= n
	com[1] /= n
	com[2] /= n
	seg.COM = com
}

// ShellPartition splits the segments other than centerId into PolSphere
// (distance <= r1), OutSphere (r1 < distance <= r2) and the remainder
// (distance > r2, not polarized), using the center segment's COM as the
// reference point
func (o *Topology) ShellPartition(centerId int, r1, r2 float64) (polSphere, outSphere []int) {
	center := o.SegmentById(centerId)
	if center == nil {
		return nil, nil
	}
	if center.COM == nil {
		o.ComputeCOM(center)
	}
	for i := range o.Segments {
		seg := &o.Segments[i]
		if seg.Id == centerId {
			continue
		}
		if seg.COM == nil {
			o.ComputeCOM(seg)
		}
		_, r := o.Box.ShortestConnect(center.COM, seg.COM)
		switch {
		case r <= r1:
			polSphere = append(polSphere, seg.Id)
		case r <= r2:
			outSphere = append(outSphere, seg.Id)
		}
	}
	return
}
