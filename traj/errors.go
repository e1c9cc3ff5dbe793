/*
 * errors.go, part of avoforce.
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

package traj

import (
	"fmt"
	"strings"
)

//Error is the error type of the package.
type Error struct {
	message  string
	filename string //the file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func (err Error) Error() string {
	return fmt.Sprintf("trajectory %s error: %s (%s)", err.filename, err.message, strings.Join(err.deco, " <- "))
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (E Error) Decorate(deco string) []string {
	if deco == "" {
		return E.deco
	}
	E.deco = append(E.deco, deco)
	return E.deco
}

func (err Error) Critical() bool { return err.critical }

//Some error messages.
const (
	TrajUnIniWrite = "Writer not initialized or already closed"
	NilCoordinates = "Nil coordinates given"
)

func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(interface{ Decorate(string) []string }); ok {
		e.Decorate(caller)
	}
	return err
}
