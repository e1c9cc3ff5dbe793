/*
 * doc.go, part of avoforce.
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

/*Package chem is the main package of avoforce. It provides the atom, topology
and molecule structures shared by the rest of the packages, the atomic data
needed to go between atomic numbers and element symbols, and the unit
conversion factors used to talk to the host application.

	**avoforce**

    avoforce is an energy and gradient plugin for the Avogadro molecular
	editor. Avogadro gives it a molecule in CJSON format and then streams
	updated coordinates through the standard input, one atom per line. For
	each set of coordinates avoforce prints the energy, in kcal/mol, and its
	gradient.

    The energies and forces themselves come from an external force field,
	by default the MatterSim-5M machine-learned interatomic potential, which
	runs in a separate worker process (see the qm package). xtb and remote
	HTTP inference servers can be used instead.

    Reading CJSON files, which can be gzip or zstd compressed, is implemented
	in the cjson package. The protocol with Avogadro itself lives in the
	avogadro package, and the traj package can record every geometry
	computed, for instance to look at a molecular dynamics run afterwards.

*/
package chem
