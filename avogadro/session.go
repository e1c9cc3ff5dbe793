/*
 * session.go, part of avoforce.
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

package avogadro

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/internal/logging"
	"github.com/rmera/avoforce/qm"
	v3 "github.com/rmera/avoforce/v3"
)

//Calculator is anything that gives energies and forces for a set of coordinates.
//qm.Handle implements it.
type Calculator interface {
	Calculate(ctx context.Context, coords *v3.Matrix) (*qm.Result, error)
}

//Recorder keeps the geometries computed in a session. traj.Writer implements it.
type Recorder interface {
	WNext(coords *v3.Matrix, energy float64) error
}

//Session runs the coordinates/energy loop with Avogadro for one molecule.
type Session struct {
	calc   Calculator
	coords *v3.Matrix
	in     *bufio.Reader
	out    *bufio.Writer
	log    logging.Logger
	rec    Recorder
	cycles int
}

//NewSession returns a Session that reads coordinates from in and writes
//results to out. The session works on a copy of the coordinates of mol,
//which are kept for atoms with no valid coordinates in a cycle.
func NewSession(mol *chem.Molecule, calc Calculator, in io.Reader, out io.Writer) *Session {
	return &Session{
		calc:   calc,
		coords: mol.Coords.Clone(),
		in:     bufio.NewReader(in),
		out:    bufio.NewWriter(out),
		log:    logging.NewNopLogger(),
	}
}

func (S *Session) SetLogger(log logging.Logger) { S.log = log }

//SetRecorder sets a Recorder that gets the coordinates and energy, in kcal/mol,
//of each cycle. Recording errors are logged and stop the recording, the
//session goes on.
func (S *Session) SetRecorder(rec Recorder) { S.rec = rec }

//Cycles returns the number of cycles completed.
func (S *Session) Cycles() int { return S.cycles }

//Run answers cycles until the input ends. It returns nil if the input ends
//between cycles, and an error if it ends in the middle of one, if a
//coordinate can't be parsed, or if the calculation fails. ctx is checked
//between cycles.
func (S *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := S.readCycle()
		if err == io.EOF {
			S.log.Info("input closed", logging.Int("cycles", S.cycles))
			return nil
		}
		if err != nil {
			return chem.ErrDecorate(err, "Run")
		}
		if err := S.Step(ctx); err != nil {
			return chem.ErrDecorate(err, "Run")
		}
	}
}

//Step computes the energy and gradient for the current coordinates and writes them.
//The geometry is recorded before the answer is written.
func (S *Session) Step(ctx context.Context) error {
	start := time.Now()
	res, err := S.calc.Calculate(ctx, S.coords)
	if err != nil {
		return chem.ErrDecorate(err, "Step")
	}
	o, err := NewOutput(res, S.coords.NVecs())
	if err != nil {
		return chem.ErrDecorate(err, "Step")
	}
	if S.rec != nil {
		if err := S.rec.WNext(S.coords, o.Energy); err != nil {
			S.log.Error("can't record geometry, recording stopped", logging.Err(err))
			S.rec = nil
		}
	}
	if _, err := o.WriteTo(S.out); err != nil {
		return err
	}
	if err := S.out.Flush(); err != nil {
		return err
	}
	S.cycles++
	S.log.Debug("cycle done", logging.Int("cycle", S.cycles), logging.Float64("energy", o.Energy), logging.Duration("elapsed", time.Since(start)))
	return nil
}

//readCycle reads one line per atom and updates the coordinates. It returns
//io.EOF if the input ends before the first line.
func (S *Session) readCycle() error {
	natoms := S.coords.NVecs()
	row := make([]float64, 3)
	skipped := 0
	for i := 0; i < natoms; i++ {
		line, err := S.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				if i == 0 {
					return io.EOF
				}
				return newError(ErrTruncatedCycle, fmt.Sprintf("%d of %d lines read", i, natoms), "readCycle")
			}
			return err
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			skipped++
			continue
		}
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return newError(ErrBadCoordinate, fmt.Sprintf("atom %d: %q", i+1, f), "readCycle")
			}
			//Out of range values parse to +-Inf, no force field can use those.
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return newError(ErrBadCoordinate, fmt.Sprintf("atom %d: %q is not a finite number", i+1, f), "readCycle")
			}
			row[j] = v
		}
		S.coords.SetVec(i, row)
	}
	if skipped > 0 {
		S.log.Debug("kept previous coordinates", logging.Int("lines", skipped), logging.Int("cycle", S.cycles+1))
	}
	return nil
}
