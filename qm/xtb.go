/*
 * xtb.go, part of avoforce.
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

//In order to use this part of the library you need the xtb program, which must be obtained from Prof. Stefan Grimme's group.
//Please cite the the xtb references if you used the program.

package qm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/internal/logging"
	v3 "github.com/rmera/avoforce/v3"
)

//Note that the default methods vary with each program, and even
//for a given program they are NOT considered part of the API, so they can always change.
type XTBHandle struct {
	command   string
	inputname string
	nCPU      int
	method    string
	log       logging.Logger

	mu  sync.Mutex
	mol *chem.Molecule
	dir string //private working directory, xtb always writes the same file names.
}

func NewXTBHandle() *XTBHandle {
	run := new(XTBHandle)
	run.SetDefaults()
	return run
}

//XTBHandle methods

//Sets the number of CPU to be used
func (O *XTBHandle) SetnCPU(cpu int) {
	O.nCPU = cpu
}

func (O *XTBHandle) SetCommand(name string) {
	O.command = name
}

//SetMethod sets the xtb method: gfn0, gfn1, gfn2 or gfnff.
//Anything else means gfn2.
func (O *XTBHandle) SetMethod(method string) {
	O.method = strings.ToLower(method)
}

func (O *XTBHandle) SetLogger(log logging.Logger) { O.log = log }

func (O *XTBHandle) SetDefaults() {
	O.command = os.ExpandEnv("xtb")
	O.inputname = "avoforce"
	O.method = "gfn2"
	cpu := runtime.NumCPU() / 2
	O.nCPU = cpu
	O.log = logging.NewNopLogger()
}

func (O *XTBHandle) Describe() Description {
	name := "GFN2-xTB"
	switch O.method {
	case "gfn0":
		name = "GFN0-xTB"
	case "gfn1":
		name = "GFN1-xTB"
	case "gfnff":
		name = "GFN-FF"
	}
	return Description{
		Name:        name,
		Identifier:  "avoforce-" + O.method,
		Text:        fmt.Sprintf("Calculate %s energies and gradients with xtb", name),
		Elements:    chem.ElementRange{First: 1, Last: 86},
		UnitCell:    false,
		Ion:         true,
		Radical:     true,
		Unavailable: "xtb is unavailable",
	}
}

//Probe checks that the xtb program is in the PATH.
func (O *XTBHandle) Probe(ctx context.Context) Capability {
	if _, err := exec.LookPath(O.command); err != nil {
		return Capability{Reason: err.Error()}
	}
	return Capability{Available: true}
}

//Start creates the working directory for the calculations on mol.
func (O *XTBHandle) Start(ctx context.Context, mol *chem.Molecule) error {
	O.mu.Lock()
	defer O.mu.Unlock()
	if mol.Periodic() {
		return newError(ErrPeriodicUnsupported, XTB, O.inputname, "", "Start")
	}
	if err := checkElements(O.Describe(), mol, XTB, O.inputname); err != nil {
		return err
	}
	dir, err := os.MkdirTemp("", "avoforce-xtb-")
	if err != nil {
		return newError(ErrCantInput, XTB, O.inputname, err.Error(), "Start")
	}
	O.dir = dir
	O.mol = mol
	return nil
}

//options builds the command line for xtb.
func (O *XTBHandle) options() []string {
	opts := []string{O.inputname + ".xyz", "--grad"}
	opts = append(opts, "--chrg", strconv.Itoa(O.mol.Charge()))
	opts = append(opts, "--uhf", strconv.Itoa(O.mol.Unpaired()))
	if O.nCPU > 1 {
		opts = append(opts, "-P", strconv.Itoa(O.nCPU))
	}
	switch O.method {
	case "gfnff":
		opts = append(opts, "--gfnff")
	case "gfn0", "gfn1", "gfn2":
		opts = append(opts, "--gfn", strings.TrimPrefix(O.method, "gfn"))
	default:
		opts = append(opts, "--gfn", "2") //default method
	}
	return opts
}

//Calculate runs xtb on coords and reads the energy and gradient it writes.
func (O *XTBHandle) Calculate(ctx context.Context, coords *v3.Matrix) (*Result, error) {
	O.mu.Lock()
	defer O.mu.Unlock()
	if O.mol == nil {
		return nil, newError(ErrNotStarted, XTB, O.inputname, "", "Calculate")
	}
	//xtb appends to an existing gradient file, and would restart from the previous wave function.
	for _, v := range []string{"gradient", "energy", "xtbrestart", "charges", "wbo"} {
		os.Remove(filepath.Join(O.dir, v))
	}
	err := chem.XYZFileWrite(filepath.Join(O.dir, O.inputname+".xyz"), coords, O.mol)
	if err != nil {
		return nil, newError(ErrCantInput, XTB, O.inputname, err.Error(), "Calculate")
	}
	out, err := os.Create(filepath.Join(O.dir, O.inputname+".out"))
	if err != nil {
		return nil, newError(ErrCantInput, XTB, O.inputname, err.Error(), "Calculate")
	}
	defer out.Close()
	opts := O.options()
	O.log.Debug("running xtb", logging.String("command", O.command+" "+strings.Join(opts, " ")))
	command := exec.CommandContext(ctx, O.command, opts...)
	command.Dir = O.dir
	command.Stdout = out
	command.Stderr = out
	if err := command.Run(); err != nil {
		return nil, newError(ErrNotRunning, XTB, O.inputname, err.Error(), "Calculate")
	}
	f, err := os.Open(filepath.Join(O.dir, "gradient"))
	if err != nil {
		return nil, newError(ErrNoForces, XTB, O.inputname, err.Error(), "Calculate")
	}
	defer f.Close()
	energy, grad, err := readTMGradient(f, O.mol.Len())
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.inputname = O.inputname
		}
		return nil, chem.ErrDecorate(err, "Calculate")
	}
	grad.Scale(-chem.HBohr2EVA, grad)
	return &Result{Energy: energy * chem.H2EV, Forces: grad}, nil
}

//Close removes the working directory.
func (O *XTBHandle) Close() error {
	O.mu.Lock()
	defer O.mu.Unlock()
	if O.dir == "" {
		return nil
	}
	err := os.RemoveAll(O.dir)
	O.dir = ""
	O.mol = nil
	return err
}

//readTMGradient reads the last cycle of a gradient file in Turbomole format,
//as written by xtb. It returns the energy in Hartree and the gradient in Hartree/Bohr.
func readTMGradient(in io.Reader, natoms int) (float64, *v3.Matrix, error) {
	const funcname = "readTMGradient"
	var lines []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, newError(ErrNoForces, XTB, "", err.Error(), funcname)
	}
	//There may be several cycles in the file, we want the last one.
	start := -1
	for i, v := range lines {
		if strings.Contains(v, "cycle =") {
			start = i
		}
	}
	if start < 0 {
		return 0, nil, newError(ErrNoEnergy, XTB, "", "no cycle line in gradient file", funcname)
	}
	energy, err := tmEnergy(lines[start])
	if err != nil {
		return 0, nil, chem.ErrDecorate(err, funcname)
	}
	//natoms lines with coordinates and symbols, then natoms lines of gradient.
	if len(lines) < start+1+2*natoms {
		return 0, nil, newError(ErrNoForces, XTB, "", "gradient file is truncated", funcname)
	}
	grad := v3.Zeros(natoms)
	for i := 0; i < natoms; i++ {
		fields := strings.Fields(lines[start+1+natoms+i])
		if len(fields) != 3 {
			return 0, nil, newError(ErrNoForces, XTB, "", fmt.Sprintf("bad gradient line for atom %d: %q", i, lines[start+1+natoms+i]), funcname)
		}
		for j, s := range fields {
			v, err := parseFortranFloat(s)
			if err != nil {
				return 0, nil, newError(ErrNoForces, XTB, "", err.Error(), funcname)
			}
			grad.Set(i, j, v)
		}
	}
	return energy, grad, nil
}

//tmEnergy gets the energy from a line like
//"  cycle =      1    SCF energy =    -5.07054444061   |dE/xyz| =  0.000524"
func tmEnergy(line string) (float64, error) {
	i := strings.Index(line, "energy =")
	if i < 0 {
		return 0, newError(ErrNoEnergy, XTB, "", fmt.Sprintf("no energy in %q", line), "tmEnergy")
	}
	fields := strings.Fields(line[i+len("energy ="):])
	if len(fields) == 0 {
		return 0, newError(ErrNoEnergy, XTB, "", fmt.Sprintf("no energy in %q", line), "tmEnergy")
	}
	energy, err := parseFortranFloat(fields[0])
	if err != nil {
		return 0, newError(ErrNoEnergy, XTB, "", err.Error(), "tmEnergy")
	}
	return energy, nil
}

//parseFortranFloat parses floats that can use D as the exponent marker.
func parseFortranFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(s), 64)
}
