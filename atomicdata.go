/*
 * atomicdata.go, part of avoforce.
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
)

//MaxZ is the largest atomic number known to the package.
const MaxZ = 118

//The element symbols, indexed by atomic number. Index 0 is
//a dummy atom.
var zSymbol = [MaxZ + 1]string{
	"Xx",
	"H", "He",
	"Li", "Be", "B", "C", "N", "O", "F", "Ne",
	"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
	"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn", "Ga", "Ge", "As", "Se", "Br", "Kr",
	"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd", "In", "Sn", "Sb", "Te", "I", "Xe",
	"Cs", "Ba",
	"La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy", "Ho", "Er", "Tm", "Yb", "Lu",
	"Hf", "Ta", "W", "Re", "Os", "Ir", "Pt", "Au", "Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn",
	"Fr", "Ra",
	"Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf", "Es", "Fm", "Md", "No", "Lr",
	"Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds", "Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
}

//Symbol returns the element symbol for the atomic number z,
//or an empty string if z is out of range.
func Symbol(z int) string {
	if z < 1 || z > MaxZ {
		return ""
	}
	return zSymbol[z]
}

//ElementRange is an inclusive range of atomic numbers, written
//the way Avogadro expects it, i.e. "1-89".
type ElementRange struct {
	First int
	Last  int
}

//Contains returns true if z is in the range.
func (E ElementRange) Contains(z int) bool {
	return z >= E.First && z <= E.Last
}

func (E ElementRange) String() string {
	return fmt.Sprintf("%d-%d", E.First, E.Last)
}
