// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package tmpl loads the multipole/polarizability templates keyed by
// segment name and projects them onto a segment's actual sites. Parsing
// GDMA output directly is left to external tooling; this package reads a
// small self-contained line-oriented text format instead
package tmpl

import (
	"strconv"
	"strings"

	"github.com/cpmech/ctp/inp"
	"github.com/cpmech/ctp/polar"
	"github.com/cpmech/gosl/io"
)

// unit conversion constants
const (
	Bohr2nm = 0.0529189379 // atomic length unit -> nm
	Ang2nm  = 0.1          // angstrom -> nm
	Ang3nm3 = 1e-3         // angstrom^3 -> nm^3
)

// DefaultAlpha holds the isotropic dipole polarizability (nm^3) fallback
// used when a template omits a per-site value. An element outside this
// table with no explicit POLAR line is a fatal configuration error
var DefaultAlpha = map[string]float64{
	"C": 1.75e-3,
	"H": 0.696e-3,
	"N": 1.073e-3,
	"O": 0.837e-3,
	"S": 2.926e-3,
}

// TemplateError flags a fatal problem with a template file: missing file,
// malformed line, or mismatched state population between sites. Fatal at
// init, before any worker starts
type TemplateError struct {
	msg string
}

func (e *TemplateError) Error() string { return e.msg }

// NewTemplateError creates a TemplateError with a formatted message
func NewTemplateError(msg string, args ...interface{}) *TemplateError {
	return &TemplateError{msg: io.Sf(msg, args...)}
}

// SiteTemplate is one site's local-frame data as read from the template
// file, already converted to internal units (nm, e.nm^k, nm^3), before
// being placed onto an actual segment's geometry
type SiteTemplate struct {
	Element string
	LocalR  []float64 // local-frame position, nm
	Rank    int
	States  map[int]*polar.StateMoments
}

// Source is one template: the local-frame multipole/polarizability data for
// every site of a segment type, in the order they appear in the file
type Source struct {
	Name  string
	Sites []SiteTemplate
}

// ChrgStates returns the charge states this source populates, in the
// driver's processing order (neutral, anion, cation). Load guarantees
// every site of a source carries the same state set, so the first site
// answers for all of them.
func (o *Source) ChrgStates() []int {
	if len(o.Sites) == 0 {
		return nil
	}
	var out []int
	for _, s := range polar.StateOrder {
		if _, ok := o.Sites[0].States[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Library indexes Sources by segment name
type Library struct {
	Sources map[string]*Source
}

// NewLibrary creates an empty Library
func NewLibrary() *Library {
	return &Library{Sources: make(map[string]*Source)}
}

// Load reads a template file and indexes its sources by name. The format
// is line-oriented:
//   UNITS bohr|angstrom|nm
//   SEGMENT <name>
//   SITE <element> <x> <y> <z> <rank>
//   POLAR <state> <alpha[A^3]>
//   CHARGE <state> <q[e]>
//   DIPOLE <state> <px> <py> <pz>
//   QUAD <state> <Q20> <Q21c> <Q21s> <Q22c> <Q22s>
//   END
// Positions and moments convert to nm via the declared units: a rank-k
// moment is scaled by factor^k; polarizabilities are declared in A^3 and
// convert by 1e-3 regardless of the length unit. States are -1, 0, +1.
// Blank lines and lines starting with # are ignored.
func (o *Library) Load(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewTemplateError("tmpl: malformed line in %q: %v", path, r)
		}
	}()
	b, rerr := io.ReadFile(path)
	if rerr != nil {
		return NewTemplateError("tmpl: cannot read template file %q", path)
	}
	lines := strings.Split(string(b), "\n")

	factor := 1.0 // declared length unit -> nm
	var cur *Source
	var site *SiteTemplate

	flushSite := func() {
		if cur != nil && site != nil {
			cur.Sites = append(cur.Sites, *site)
			site = nil
		}
	}
	moments := func(state int) *polar.StateMoments {
		m, ok := site.States[state]
		if !ok {
			m = &polar.StateMoments{Q1: make([]float64, 3)}
			site.States[state] = m
		}
		return m
	}

	for lineNo, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		switch strings.ToUpper(f[0]) {
		case "UNITS":
			switch strings.ToLower(f[1]) {
			case "bohr":
				factor = Bohr2nm
			case "angstrom":
				factor = Ang2nm
			case "nm":
				factor = 1.0
			default:
				return inp.NewConfigError("tmpl: invalid units %q in %q (line %d)", f[1], path, lineNo+1)
			}
		case "SEGMENT":
			flushSite()
			cur = &Source{Name: f[1]}
			o.Sources[cur.Name] = cur
		case "SITE":
			flushSite()
			rank := atoi(f[5])
			if rank < 0 || rank > 2 {
				return NewTemplateError("tmpl: rank %d out of range in %q (line %d)", rank, path, lineNo+1)
			}
			site = &SiteTemplate{
				Element: f[1],
				LocalR:  []float64{atof(f[2]) * factor, atof(f[3]) * factor, atof(f[4]) * factor},
				Rank:    rank,
				States:  make(map[int]*polar.StateMoments),
			}
		case "POLAR":
			moments(atoi(f[1])).Alpha = atof(f[2]) * Ang3nm3
		case "CHARGE":
			moments(atoi(f[1])).Q0 = atof(f[2])
		case "DIPOLE":
			if site.Rank < 1 {
				return NewTemplateError("tmpl: rank-%d site must not carry a dipole, %q (line %d)", site.Rank, path, lineNo+1)
			}
			m := moments(atoi(f[1]))
			m.Q1[0], m.Q1[1], m.Q1[2] = atof(f[2])*factor, atof(f[3])*factor, atof(f[4])*factor
		case "QUAD":
			if site.Rank < 2 {
				return NewTemplateError("tmpl: rank-%d site must not carry a quadrupole, %q (line %d)", site.Rank, path, lineNo+1)
			}
			m := moments(atoi(f[1]))
			f2 := factor * factor
			for k := 0; k < 5; k++ {
				m.Q2[k] = atof(f[k+2]) * f2
			}
		case "END":
			flushSite()
			cur = nil
		default:
			return NewTemplateError("tmpl: unknown keyword %q in %q (line %d)", f[0], path, lineNo+1)
		}
	}
	flushSite()
	return o.validate(path)
}

// validate enforces the post-parse invariants: every site of a source must
// populate the same state set (mismatched population is the line-count
// mismatch of the taxonomy), and every populated state needs a positive
// polarizability, from the template or from the element default table
func (o *Library) validate(path string) error {
	for name, src := range o.Sources {
		if len(src.Sites) == 0 {
			return NewTemplateError("tmpl: segment %q in %q declares no sites", name, path)
		}
		ref := src.ChrgStates()
		for i := range src.Sites {
			site := &src.Sites[i]
			if len(site.States) != len(ref) {
				return NewTemplateError("tmpl: segment %q in %q: site %d populates %d states, site 0 populates %d",
					name, path, i, len(site.States), len(ref))
			}
			for _, state := range ref {
				m, ok := site.States[state]
				if !ok {
					return NewTemplateError("tmpl: segment %q in %q: site %d misses state %+d", name, path, i, state)
				}
				if m.Alpha == 0 {
					def, known := DefaultAlpha[site.Element]
					if !known {
						return inp.NewConfigError("tmpl: element %q has no default polarizability and %q declares none (segment %q, site %d)",
							site.Element, path, name, i)
					}
					m.Alpha = def
				}
				if m.Alpha <= 0 {
					return inp.NewConfigError("tmpl: non-positive polarizability %g (segment %q, site %d, state %+d)",
						m.Alpha, name, i, state)
				}
			}
		}
	}
	return nil
}

// Project places the template's local-frame sites at a rigid offset in the
// lab frame. No rotation is applied: local frames are axis-aligned in this
// core, so the rigid transform degenerates to a translation and rank>0
// moments carry through unchanged.
func (o *Source) Project(offset []float64) []SiteTemplate {
	out := make([]SiteTemplate, len(o.Sites))
	for i, s := range o.Sites {
		out[i] = s
		out[i].LocalR = []float64{
			s.LocalR[0] + offset[0],
			s.LocalR[1] + offset[1],
			s.LocalR[2] + offset[2],
		}
	}
	return out
}

// ProjectMD overwrites the template positions with the MD atom positions
// (the map2md path). Sites of rank > 0 are rejected: their moments are
// expressed in the template's own frame and cannot follow arbitrary MD
// coordinates without a local-frame rotation, which this solver does not
// apply.
func (o *Source) ProjectMD(atomPos [][]float64) ([]SiteTemplate, error) {
	if len(atomPos) != len(o.Sites) {
		return nil, NewTemplateError("tmpl: map2md: %d MD positions for %d template sites (segment %q)",
			len(atomPos), len(o.Sites), o.Name)
	}
	out := make([]SiteTemplate, len(o.Sites))
	for i, s := range o.Sites {
		if s.Rank > 0 {
			return nil, NewTemplateError("tmpl: map2md: rank-%d site %d in segment %q cannot be mapped onto MD coordinates",
				s.Rank, i, o.Name)
		}
		out[i] = s
		out[i].LocalR = []float64{atomPos[i][0], atomPos[i][1], atomPos[i][2]}
	}
	return out, nil
}

// MakeSite instantiates one polar.Site from a projected template entry,
// registering every populated state's moments
func MakeSite(id int, t SiteTemplate) (*polar.Site, error) {
	s := polar.NewSite(id, t.Element, t.LocalR)
	s.Rank = t.Rank
	for state, m := range t.States {
		if err := s.SetState(state, *m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func atof(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		panic(err)
	}
	return v
}

func atoi(s string) int {
	v, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
	if err != nil {
		panic(err)
	}
	return v
}
