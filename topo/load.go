// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package topo

import (
	"strconv"
	"strings"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
)

// LoadSites reads a plain-text geometry file and returns a Topology plus,
// for every site id, its segment id and its element name. The format is line-oriented, mirroring
// other plain-text inputs read by this package:
//   BOX <Lx> <Ly> <Lz>
//   SEGMENT <id> <name>
//   SITE <id> <element> <x> <y> <z>
//   END
// blank lines and lines starting with # are ignored.
func LoadSites(path string) (top *Topology, siteSeg map[int]int, siteElem map[int]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = chk.Err("topo: failed to parse %q: %v", path, r)
		}
	}()
	b, rerr := io.ReadFile(path)
	if rerr != nil {
		return nil, nil, nil, chk.Err("topo: cannot read geometry file %q", path)
	}
	top = NewTopology(Box{})
	siteSeg = make(map[int]int)
	siteElem = make(map[int]string)

	var cur *Segment
	for _, raw := range strings.Split(string(b), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f := strings.Fields(line)
		switch strings.ToUpper(f[0]) {
		case "BOX":
			top.Box = Box{Lx: atof(f[1]), Ly: atof(f[2]), Lz: atof(f[3])}
		case "SEGMENT":
			if cur != nil {
				top.AddSegment(*cur)
			}
			id, _ := strconv.Atoi(f[1])
			cur = &Segment{Id: id, Name: f[2]}
		case "SITE":
			id, _ := strconv.Atoi(f[1])
			pos := []float64{atof(f[3]), atof(f[4]), atof(f[5])}
			top.Coords[id] = pos
			siteSeg[id] = cur.Id
			siteElem[id] = f[2]
			cur.SiteIds = append(cur.SiteIds, id)
		case "END":
			if cur != nil {
				top.AddSegment(*cur)
				cur = nil
			}
		}
	}
	if cur != nil {
		top.AddSegment(*cur)
	}
	return top, siteSeg, siteElem, nil
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
