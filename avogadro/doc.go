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

//Package avogadro implements the plugin side of the Avogadro script
//energy protocol: the capability JSON printed with --metadata, the
//display name, and the loop that reads coordinates from the standard
//input and answers with the energy and gradient in kcal/mol.
//
//For each cycle Avogadro writes one line per atom. A line with 3 numbers
//replaces the coordinates of that atom, any other line leaves them as they
//were. The plugin answers with
//
//	AvogadroEnergy: <energy>
//	AvogadroGradient:
//	<gx> <gy> <gz>
//	...
//
//and waits for the next set of coordinates. Avogadro ends the session by
//closing the pipe or killing the process.
package avogadro
