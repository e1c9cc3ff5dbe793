/*
 * files.go, part of avoforce.
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

package chem

import (
	"fmt"
	"io"
	"os"

	v3 "github.com/rmera/avoforce/v3"
)

//XYZWrite writes the mol Ref and coordinates in XYZ format in the given io.Writer.
func XYZWrite(out io.Writer, coords *v3.Matrix, mol Atomer, comment string) error {
	if mol.Len() != coords.NVecs() {
		return NewError("XYZWrite", "Ref and Coords dont have the same number of atoms")
	}
	if _, err := fmt.Fprintf(out, "%-4d\n%s\n", mol.Len(), comment); err != nil {
		return NewError("XYZWrite", "Failed to write the XYZ header: %v", err)
	}
	row := make([]float64, 3)
	for i := 0; i < mol.Len(); i++ {
		coords.Row(row, i)
		_, err := fmt.Fprintf(out, "%-2s  %12.6f%12.6f%12.6f\n", mol.Atom(i).Symbol, row[0], row[1], row[2])
		if err != nil {
			return NewError("XYZWrite", "Failed to write atom %d: %v", i, err)
		}
	}
	return nil
}

//XYZFileWrite writes the mol Ref and the coordinates in an XYZ file with the given name.
func XYZFileWrite(xyzname string, coords *v3.Matrix, mol Atomer) error {
	out, err := os.Create(xyzname)
	if err != nil {
		return NewError("XYZFileWrite", "%v", err)
	}
	defer out.Close()
	if err := XYZWrite(out, coords, mol, "Written by avoforce"); err != nil {
		return ErrDecorate(err, "XYZFileWrite")
	}
	return nil
}
