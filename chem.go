/*
 * chem.go, part of avoforce.
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
	"math"

	v3 "github.com/rmera/avoforce/v3"
)

/**Note: Some functions here panic instead of returning errors. This is because they are "fundamental"
 * functions. If something goes wrong here, the program is most likely wrong and should
 * crash. Those panics are related to using the function on a nil object or trying to access out-of bounds
 * fields**/

const appzero float64 = 1e-12 //Everything equal or less than this is considered zero.

//Atom contains the atoms read except for the coordinates, which will be in a matrix.
type Atom struct {
	Z      int //atomic number
	Symbol string
	ID     int //1-based position in the molecule
}

//NewAtom returns an Atom with atomic number z and the matching symbol.
func NewAtom(z, id int) *Atom {
	return &Atom{Z: z, Symbol: Symbol(z), ID: id}
}

/*****Topology type***/

//Topology contains information about a molecule which is not expected to change in time (i.e. everything except for coordinates)
type Topology struct {
	Atoms  []*Atom
	charge int
	multi  int
}

//NewTopology returns a topology with charge charge, multiplicity multi
//and the atoms in ats. It does not check for consistency of the charge
//and multiplicity. A multiplicity smaller than 1 is taken as 1.
func NewTopology(charge, multi int, ats []*Atom) *Topology {
	if multi < 1 {
		multi = 1
	}
	return &Topology{Atoms: ats, charge: charge, multi: multi}
}

//Charge gets the total charge of the topology
func (T *Topology) Charge() int {
	return T.charge
}

//Multi returns the multiplicity of the topology
func (T *Topology) Multi() int {
	return T.multi
}

//Unpaired returns the number of unpaired electrons
func (T *Topology) Unpaired() int {
	return T.multi - 1
}

//Atom returns the Atom corresponding to the index i
//of the Atom slice in the Topology. Panics if
//out of range.
func (T *Topology) Atom(i int) *Atom {
	if i >= T.Len() {
		panic("Topology: Requested Atom out of bounds")
	}
	return T.Atoms[i]
}

//Len returns the number of atoms in the topology.
func (T *Topology) Len() int {
	return len(T.Atoms)
}

//Numbers returns a slice with the atomic numbers of all the atoms, in order.
func (T *Topology) Numbers() []int {
	ret := make([]int, T.Len())
	for i, v := range T.Atoms {
		ret[i] = v.Z
	}
	return ret
}

/**Type Cell**/

//Cell is a periodic simulation cell. Each of the 3 vectors of Vectors is a
//lattice vector, in A.
type Cell struct {
	Vectors *v3.Matrix
}

//NewCell returns a Cell with the given lattice vectors. It returns an error if
//vectors is not 3x3 or if the vectors are linearly dependent.
func NewCell(vectors *v3.Matrix) (*Cell, error) {
	if vectors == nil || vectors.NVecs() != 3 {
		return nil, NewError("NewCell", "A cell needs exactly 3 lattice vectors")
	}
	C := &Cell{Vectors: vectors}
	if C.Volume() <= appzero {
		return nil, NewError("NewCell", "Lattice vectors are linearly dependent (volume %g)", C.Volume())
	}
	return C, nil
}

//Volume returns the volume of the cell in A^3.
func (C *Cell) Volume() float64 {
	return math.Abs(C.Vectors.Det())
}

/**Type Molecule**/

//Molecule contains all the info for a system: the topology, one set
//of coordinates and, for periodic systems, the unit cell. Periodic
//boundary conditions are used if, and only if, Cell is not nil.
type Molecule struct {
	*Topology
	Coords *v3.Matrix
	Cell   *Cell
}

//NewMolecule puts together a Molecule. cell can be nil for non-periodic systems.
//It returns an error if the number of atoms and coordinates don't match.
func NewMolecule(top *Topology, coords *v3.Matrix, cell *Cell) (*Molecule, error) {
	if top == nil || coords == nil {
		return nil, NewError("NewMolecule", "Nil topology or coordinates")
	}
	M := &Molecule{Topology: top, Coords: coords, Cell: cell}
	if err := M.Corrupted(); err != nil {
		return nil, ErrDecorate(err, "NewMolecule")
	}
	return M, nil
}

//Periodic returns true if periodic boundary conditions apply to M.
func (M *Molecule) Periodic() bool {
	return M.Cell != nil
}

//Corrupted checks whether the molecule is corrupted, i.e. the
//topology and coordinates don't have the same number of atoms.
func (M *Molecule) Corrupted() error {
	if M.Len() == 0 {
		return NewError("Corrupted", "Molecule has no atoms")
	}
	if M.Coords.NVecs() != M.Len() {
		return NewError("Corrupted", "Inconsistent coordinates/atoms: %d/%d", M.Coords.NVecs(), M.Len())
	}
	return nil
}
