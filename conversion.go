/*
 * conversion.go, part of avoforce.
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

//This provides useful conversion factors and other constants

//Conversions
const (
	EV2Kcal   = 23.060548867 //1 eV in kcal/mol, the value used by cclib.
	H2EV      = 27.211386245988
	A2Bohr    = 1.889725989
	HBohr2EVA = H2EV * A2Bohr //Hartree/Bohr to eV/A, for gradients and forces.
)
