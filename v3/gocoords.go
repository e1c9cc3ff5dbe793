/*
 * gocoords.go, part of avoforce.
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

package v3

import (
	"fmt"
	"strings"
)

//NVecs returns the number of vecs in F.
func (F *Matrix) NVecs() int {
	r, c := F.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return r
}

//SetVec sets the ith vector of F to the 3 values in vec.
func (F *Matrix) SetVec(i int, vec []float64) {
	if i >= F.NVecs() || i < 0 {
		panic(ErrIndexOutOfRange)
	}
	if len(vec) != 3 {
		panic(ErrShape)
	}
	F.Dense.SetRow(i, vec)
}

//FromRows builds a Matrix from a slice of 3-element rows.
func FromRows(rows [][]float64) (*Matrix, error) {
	data := make([]float64, 0, 3*len(rows))
	for i, v := range rows {
		if len(v) != 3 {
			return nil, Error{fmt.Sprintf("Row %d has %d elements, 3 expected", i, len(v)), []string{"FromRows"}, true}
		}
		data = append(data, v...)
	}
	return NewMatrix(data)
}

//Rows returns the vectors of F as a freshly allocated slice of slices,
//which is what most encoders expect.
func (F *Matrix) Rows() [][]float64 {
	n := F.NVecs()
	ret := make([][]float64, n)
	for i := 0; i < n; i++ {
		ret[i] = F.Row(nil, i)
	}
	return ret
}

//String returns a neat string representation of a Matrix
func (F *Matrix) String() string {
	r, _ := F.Dims()
	v := make([]string, r)
	row := make([]float64, 3)
	for i := 0; i < r; i++ {
		F.Row(row, i)
		v[i] = fmt.Sprintf("%10.5f %10.5f %10.5f", row[0], row[1], row[2])
	}
	return "[" + strings.Join(v, "\n ") + "]"
}
