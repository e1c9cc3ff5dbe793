/*
 * gonum.go, part of avoforce.
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

//gonum.go contains what is needed for handling the gonum/mat types.

//All the *Vec functions operate on row vectors, since the underlying Dense
//is row major.

package v3

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

//Matrix is a set of vectors in 3D space.
//Within the package it is understood that a "vector" is a row vector, i.e. the
//cartesian coordinates of a point in 3D space.
type Matrix struct {
	*mat.Dense
}

//NewMatrix generates and returns a Matrix with 3 columns from data.
//data is used as the backing slice of the Matrix, it is not copied.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	if l == 0 {
		return nil, Error{"Input slice is empty", []string{"NewMatrix"}, true}
	}
	if l%cols != 0 {
		return nil, Error{fmt.Sprintf("Input slice length %d not divisible by %d: %d", l, cols, l%cols), []string{"NewMatrix"}, true}
	}
	return &Matrix{mat.NewDense(l/cols, cols, data)}, nil
}

//Zeros returns a zero-filled Matrix with vecs vectors and 3 in the other dimension.
func Zeros(vecs int) *Matrix {
	const cols int = 3
	f := make([]float64, cols*vecs)
	return &Matrix{mat.NewDense(vecs, cols, f)}
}

//Row copies the ith vector of F into dst, which is allocated
//if nil, and returns it.
func (F *Matrix) Row(dst []float64, i int) []float64 {
	return mat.Row(dst, i, F.Dense)
}

//Clone returns a deep copy of F.
func (F *Matrix) Clone() *Matrix {
	return &Matrix{mat.DenseCopyOf(F.Dense)}
}

//Scale puts A scaled by f in the receiver. A can be the receiver.
func (F *Matrix) Scale(f float64, A *Matrix) {
	F.Dense.Scale(f, A.Dense)
}

//Det returns the determinant of F. Panics if F is not 3x3.
func (F *Matrix) Det() float64 {
	if r, _ := F.Dims(); r != 3 {
		panic(ErrDeterminant)
	}
	return mat.Det(F.Dense)
}

//Errors

//Error is the error type of the package, the same as chem.Error,
//repeated here to avoid a circular import.
type Error struct {
	message  string
	deco     []string
	critical bool
}

//Error returns a string with an error message.
func (err Error) Error() string {
	return err.message
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

//Critical returns whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

//PanicMsg is a message used for panics, even though it does satisfy the error interface.
//for errors use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNotXx3Matrix    = PanicMsg("avoforce/v3: A Matrix should have 3 columns")
	ErrDeterminant     = PanicMsg("avoforce/v3: Determinants are only available for 3x3 matrices")
	ErrShape           = PanicMsg("avoforce/v3: Dimension mismatch")
	ErrIndexOutOfRange = PanicMsg("avoforce/v3: index out of range")
)
