// Copyright 2016 The Ctp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// package inp implements the input data read from a (.xmp) JSON configuration file
package inp

import (
	"encoding/json"

	"github.com/cpmech/gosl/io"
)

// ConfigError flags a fatal configuration problem, detected at initialisation
// and before any worker starts (cutoff2 < cutoff, invalid units, an element
// without a default polarizability, and so on)
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return e.msg }

// NewConfigError creates a ConfigError with a chk.Err-style formatted message
func NewConfigError(msg string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: io.Sf(msg, args...)}
}

// ControlData holds the top-level run-control options
type ControlData struct {
	Induce   bool   `json:"induce"`   // if false, skip SCF and use static-only energy; default true
	First    int    `json:"first"`    // first segment id to process (inclusive); 0 means unset
	Last     int    `json:"last"`     // last segment id to process (inclusive); 0 means unset
	Output   string `json:"output"`   // path to the per-segment energy table; empty disables it
	NWorkers int    `json:"nworkers"` // size of the worker pool; 0 => 1
	ConvPlot string `json:"convplot"` // path for the SCF-convergence plot of the first segment; empty disables it
}

// TholeParamData holds the Thole-damping / cutoff-shell parameters
type TholeParamData struct {
	Cutoff  float64 `json:"cutoff"`  // r1, PolSphere radius, nm
	Cutoff2 float64 `json:"cutoff2"` // r2, OutSphere outer radius, nm; 0 => defaults to Cutoff
	ExpDamp float64 `json:"expdamp"` // Thole parameter a; 0 disables damping
}

// ConvParamData holds the SCF/SOR convergence parameters
type ConvParamData struct {
	WSorN     float64 `json:"wsor_n"`    // SOR weight, neutral state; default 0.75
	WSorC     float64 `json:"wsor_c"`    // SOR weight, charged states; default 0.75
	MaxIter   int     `json:"maxiter"`   // iteration cap; default 512
	Tolerance float64 `json:"tolerance"` // εtol; default 0.001
}

// Config holds all data needed to drive the induction solver
type Config struct {
	Control    ControlData    `json:"control"`
	Tholeparam TholeParamData `json:"tholeparam"`
	Convparam  ConvParamData  `json:"convparam"`
	Multipoles string         `json:"multipoles"` // path to the template mapping file consumed by tmpl
	Sites      string         `json:"sites"`       // path to the geometry/site-list file consumed by topo
}

// SetDefault fills in default values for options the config file may omit
func (o *Config) SetDefault() {
	if o.Tholeparam.Cutoff2 < 1e-14 {
		o.Tholeparam.Cutoff2 = o.Tholeparam.Cutoff
	}
	if o.Convparam.WSorN < 1e-14 {
		o.Convparam.WSorN = 0.75
	}
	if o.Convparam.WSorC < 1e-14 {
		o.Convparam.WSorC = 0.75
	}
	if o.Convparam.MaxIter == 0 {
		o.Convparam.MaxIter = 512
	}
	if o.Convparam.Tolerance < 1e-14 {
		o.Convparam.Tolerance = 0.001
	}
}

// Validate checks the configuration for fatal errors; called once at
// initialisation, before any worker is spawned
func (o Config) Validate() error {
	if o.Tholeparam.Cutoff2 < o.Tholeparam.Cutoff {
		return NewConfigError("tholeparam.cutoff2 (%g) must be >= tholeparam.cutoff (%g)", o.Tholeparam.Cutoff2, o.Tholeparam.Cutoff)
	}
	if o.Tholeparam.Cutoff <= 0 {
		return NewConfigError("tholeparam.cutoff must be positive; got %g", o.Tholeparam.Cutoff)
	}
	if o.Control.Last != 0 && o.Control.Last < o.Control.First {
		return NewConfigError("control.last (%d) must be >= control.first (%d)", o.Control.Last, o.Control.First)
	}
	return nil
}

// ReadConfig reads configuration data from a JSON file
//  Input:
//   path -- path to the configuration (.xmp) JSON file
func ReadConfig(path string) (o *Config, err error) {
	b, err := io.ReadFile(path)
	if err != nil {
		return nil, NewConfigError("cannot read configuration file %q", path)
	}
	o = new(Config)
	o.Control.Induce = true // a config that omits the key keeps the SCF on
	err = json.Unmarshal(b, o)
	if err != nil {
		return nil, NewConfigError("cannot unmarshal configuration file %q: %v", path, err)
	}
	o.SetDefault()
	if verr := o.Validate(); verr != nil {
		return nil, verr
	}
	return o, nil
}
