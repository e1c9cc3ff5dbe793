/*
 * output.go, part of avoforce.
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
	"fmt"
	"io"
	"strconv"
	"strings"

	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/qm"
	v3 "github.com/rmera/avoforce/v3"
)

//Output is the answer to one cycle, in the units Avogadro expects.
type Output struct {
	Energy   float64    //kcal/mol
	Gradient *v3.Matrix //kcal/(mol A)
}

//NewOutput converts res, in eV and eV/A, to an Output. The gradient is minus the forces.
//natoms is the number of atoms the forces must have.
func NewOutput(res *qm.Result, natoms int) (*Output, error) {
	if res == nil || res.Forces == nil || res.Forces.NVecs() != natoms {
		got := 0
		if res != nil && res.Forces != nil {
			got = res.Forces.NVecs()
		}
		return nil, newError(ErrBadResult, fmt.Sprintf("%d forces for %d atoms", got, natoms), "NewOutput")
	}
	grad := v3.Zeros(natoms)
	grad.Scale(-chem.EV2Kcal, res.Forces)
	return &Output{Energy: res.Energy * chem.EV2Kcal, Gradient: grad}, nil
}

//formatFloat writes f with as many digits as needed, never "-0".
func formatFloat(f float64) string {
	if f == 0 {
		f = 0
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

//WriteTo writes O to w in the Avogadro format: the energy line, the
//gradient header and one line with 3 numbers per atom, with no brackets.
func (O *Output) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	b.WriteString("AvogadroEnergy: ")
	b.WriteString(formatFloat(O.Energy))
	b.WriteString("\nAvogadroGradient:\n")
	row := make([]float64, 3)
	for i := 0; i < O.Gradient.NVecs(); i++ {
		O.Gradient.Row(row, i)
		b.WriteString(formatFloat(row[0]))
		b.WriteByte(' ')
		b.WriteString(formatFloat(row[1]))
		b.WriteByte(' ')
		b.WriteString(formatFloat(row[2]))
		b.WriteByte('\n')
	}
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
