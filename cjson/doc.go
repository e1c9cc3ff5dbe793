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

//Package cjson reads molecules in the Chemical JSON (CJSON) format used by
//Avogadro to hand molecules to its plugins. Only the parts of the format
//needed for an energy calculation are read: the atomic numbers, the 3D
//coordinates, the unit cell and the total charge and spin multiplicity.
//Files can be plain, gzip- or zstd-compressed.
package cjson
