// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"os"

	"github.com/cpmech/ctp/induct"
	"github.com/cpmech/ctp/inp"
	"github.com/cpmech/ctp/polar"
	"github.com/cpmech/ctp/pool"
	"github.com/cpmech/ctp/tmpl"
	"github.com/cpmech/ctp/topo"
	"github.com/cpmech/ctp/xkernel"
	"github.com/cpmech/ctp/xplot"
	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"
	"github.com/cpmech/gosl/utl"
)

func main() {

	// catch errors: recover, print caller stack, report and exit non-zero
	defer func() {
		if err := recover(); err != nil {
			chk.Verbose = true
			for i := 8; i > 3; i-- {
				chk.CallerInfo(i)
			}
			io.PfRed("ERROR: %v\n", err)
			os.Exit(1)
		}
	}()

	io.PfWhite("\nxmultipole -- polarizable multipole induction solver\n\n")
	io.Pf("Copyright 2016 The Ctp Authors. All rights reserved.\n")
	io.Pf("Use of this source code is governed by a BSD-style\n")
	io.Pf("license that can be found in the LICENSE file.\n\n")

	flag.Parse()
	if len(flag.Args()) < 1 {
		chk.Panic("Please, provide a configuration filename. Ex.: run.xmp")
	}
	fnamepath := flag.Arg(0)

	cfg, err := inp.ReadConfig(fnamepath)
	if err != nil {
		chk.Panic("%v", err)
	}

	top, _, siteElem, err := topo.LoadSites(cfg.Sites)
	if err != nil {
		chk.Panic("%v", err)
	}

	lib := tmpl.NewLibrary()
	if err := lib.Load(cfg.Multipoles); err != nil {
		chk.Panic("%v", err)
	}

	master, err := buildSites(top, siteElem, lib)
	if err != nil {
		chk.Panic("%v", err)
	}

	first, last := cfg.Control.First, cfg.Control.Last
	var jobs []pool.Job
	for _, i := range utl.IntRange(len(top.Segments)) {
		seg := &top.Segments[i]
		top.ComputeCOM(seg)
		if seg.Id < first {
			continue
		}
		if last != 0 && seg.Id > last {
			continue
		}
		jobs = append(jobs, pool.Job{SegmentId: seg.Id})
	}

	// every worker clones the full site arena at init and reuses the
	// replicas across all segments it handles; the kernel and driver are
	// equally private, so the parallel phase shares only read-only data
	factory := func(workerId int) pool.RunFunc {
		replicas := make(map[int]*polar.Site, len(master))
		for id, s := range master {
			replicas[id] = s.Clone()
		}
		kernel := xkernel.NewKernel(top.Box, cfg.Tholeparam.ExpDamp)
		driver := induct.NewDriver(kernel, cfg.Convparam)
		driver.Induce = cfg.Control.Induce
		return func(job pool.Job) (induct.Result, error) {
			seg := top.SegmentById(job.SegmentId)
			polSphere, outSphere := top.ShellPartition(seg.Id, cfg.Tholeparam.Cutoff, cfg.Tholeparam.Cutoff2)
			return driver.Run(top, replicas, seg, polSphere, outSphere)
		}
	}

	log := new(pool.Log)
	nworkers := cfg.Control.NWorkers
	if nworkers <= 0 {
		nworkers = 1
	}
	io.Pf("processing %d segments on %d workers\n\n", len(jobs), nworkers)
	pool.NewDispatcher(jobs, factory, log).Run(nworkers)

	results := log.Results()
	for _, r := range results {
		seg := top.SegmentById(r.SegmentId)
		for _, sr := range r.States {
			seg.SetEnergy(sr.State, sr.Energy)
		}
	}

	report(cfg, results)

	if cfg.Control.ConvPlot != "" {
		plotConvergence(cfg.Control.ConvPlot, results)
	}
}

// buildSites instantiates one polar.Site per geometry site from the
// template matching its segment name, and records on each segment which
// charge states its template populates. A geometry segment without a
// template, or a template/geometry site-count mismatch, is fatal at init.
func buildSites(top *topo.Topology, siteElem map[int]string, lib *tmpl.Library) (map[int]*polar.Site, error) {
	sites := make(map[int]*polar.Site)
	for i := range top.Segments {
		seg := &top.Segments[i]
		src, ok := lib.Sources[seg.Name]
		if !ok {
			return nil, tmpl.NewTemplateError("no template for segment %q (id %d)", seg.Name, seg.Id)
		}
		if len(src.Sites) != len(seg.SiteIds) {
			return nil, tmpl.NewTemplateError("segment %q (id %d): template has %d sites, geometry has %d",
				seg.Name, seg.Id, len(src.Sites), len(seg.SiteIds))
		}
		seg.States = src.ChrgStates()
		for k, id := range seg.SiteIds {
			t := src.Sites[k]
			t.LocalR = top.Coords[id]
			s, err := tmpl.MakeSite(id, t)
			if err != nil {
				return nil, err
			}
			if elem := siteElem[id]; elem != "" && elem != s.Element {
				return nil, tmpl.NewTemplateError("segment %q (id %d): site %d is %q in the geometry but %q in the template",
					seg.Name, seg.Id, id, elem, s.Element)
			}
			sites[id] = s
		}
	}
	return sites, nil
}

// report writes the per-segment energy table, one line per segment sorted
// by id: id, name, (state, energy) per available state, (state, iterations)
// per available state, PolSphere size, center of mass. When
// cfg.Control.Output is set the table is also written to that file.
func report(cfg *inp.Config, results []induct.Result) {
	var buf bytes.Buffer
	for _, r := range results {
		buf.WriteString(io.Sf("%4d %4s ", r.SegmentId, r.Name))
		for _, state := range polar.StateOrder {
			if sr := r.StateById(state); sr != nil {
				buf.WriteString(io.Sf("  %+2d %3.8f   ", sr.State, sr.Energy))
			}
		}
		for _, state := range polar.StateOrder {
			if sr := r.StateById(state); sr != nil {
				buf.WriteString(io.Sf("  %+2d %3d   ", sr.State, sr.Iters))
			}
		}
		buf.WriteString(io.Sf("   SPH %4d   ", r.SphereSize))
		buf.WriteString(io.Sf("   %4.7f %4.7f %4.7f \n", r.COM[0], r.COM[1], r.COM[2]))
	}
	io.Pf("%s", buf.String())
	if cfg.Control.Output != "" {
		io.WriteFile(cfg.Control.Output, &buf)
	}
}

// plotConvergence draws the neutral-state SCF convergence history of the
// first reported segment that has one
func plotConvergence(path string, results []induct.Result) {
	for _, r := range results {
		sr := r.StateById(polar.Neutral)
		if sr == nil || len(sr.MaxdU) == 0 {
			continue
		}
		xplot.ConvergenceHistory(r.SegmentId, sr.MaxdU, path)
		return
	}
}
