/*
 * qm.go, part of avoforce.
 *
 * Copyright 2025 The avoforce authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package qm

import (
	"context"
	"fmt"

	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/internal/config"
	"github.com/rmera/avoforce/internal/logging"
	v3 "github.com/rmera/avoforce/v3"
)

//Names of the backends, used in errors and logs.
const (
	MatterSim = "MatterSim"
	XTB       = "xtb"
	Remote    = "Remote"
)

//Handle allows to obtain energies and forces from different programs.
type Handle interface {

	//Probe checks whether the backend can be used at all, i.e. whether the
	//program or its libraries are installed. It never fails, an unusable
	//backend just reports itself as unavailable.
	Probe(ctx context.Context) Capability

	//Describe returns what the backend can do, to be reported to Avogadro.
	Describe() Description

	//Start prepares the backend to run calculations on mol. Only the
	//atoms, charge, multiplicity and cell of mol are used; coordinates
	//are given to each Calculate call. Errors from Start are fatal.
	Start(ctx context.Context, mol *chem.Molecule) error

	//Calculate returns the energy and forces for the given coordinates
	//in eV and eV/A.
	Calculate(ctx context.Context, coords *v3.Matrix) (*Result, error)

	//Close releases the resources used by the backend.
	Close() error
}

//Result contains the output of one calculation, in the native
//units of the force fields: eV for the energy, eV/A for the forces.
type Result struct {
	Energy float64
	Forces *v3.Matrix
}

//Capability is the outcome of a Probe.
type Capability struct {
	Available   bool
	Accelerator bool   //a GPU is available to the backend
	Reason      string //why the backend is not available, if it is not.
}

//Description contains what a backend reports to the host program.
type Description struct {
	Name        string
	Identifier  string
	Text        string
	Elements    chem.ElementRange
	UnitCell    bool //periodic systems are supported
	Ion         bool //charged systems are supported
	Radical     bool //open-shell systems are supported
	Unavailable string
}

//checkElements returns an error if mol has atoms outside the elements
//supported by the backend described by d.
func checkElements(d Description, mol *chem.Molecule, code, inputname string) error {
	for i, z := range mol.Numbers() {
		if !d.Elements.Contains(z) {
			return newError(ErrUnsupportedElement, code, inputname, fmt.Sprintf("atom %d is %s, supported elements are %s", i+1, chem.Symbol(z), d.Elements), "Start")
		}
	}
	return nil
}

//New returns the Handle selected in cfg, not yet started.
func New(cfg *config.Config, log logging.Logger) (Handle, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	switch cfg.Backend {
	case config.BackendMatterSim:
		h := NewMatterSimHandle()
		h.SetPython(cfg.MatterSim.Python)
		h.SetModel(cfg.MatterSim.Model)
		h.SetDevice(cfg.MatterSim.Device)
		h.SetProbeTimeout(cfg.MatterSim.ProbeTimeout)
		h.SetLogger(log.Named("mattersim"))
		return h, nil
	case config.BackendXTB:
		h := NewXTBHandle()
		h.SetCommand(cfg.XTB.Command)
		h.SetMethod(cfg.XTB.Method)
		h.SetnCPU(cfg.XTB.CPUs)
		h.SetLogger(log.Named("xtb"))
		return h, nil
	case config.BackendRemote:
		h := NewRemoteHandle(cfg.Remote.URL)
		h.SetTimeout(cfg.Remote.Timeout)
		h.SetLogger(log.Named("remote"))
		return h, nil
	}
	return nil, newError(ErrUnknownBackend, cfg.Backend, "", "", "New")
}
