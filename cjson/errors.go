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

package cjson

import (
	"fmt"
	"strings"
)

//Error is the error type of the package. All the errors in reading a CJSON
//file are critical, as there is no way to go on without a molecule.
type Error struct {
	message  string
	filename string //the input file that has problems, or empty string if none.
	deco     []string
	critical bool
}

func newError(message, filename, caller string) *Error {
	return &Error{message: message, filename: filename, deco: []string{caller}, critical: true}
}

func (err *Error) Error() string {
	if err.filename == "" {
		return fmt.Sprintf("cjson error: %s (%s)", err.message, strings.Join(err.deco, " <- "))
	}
	return fmt.Sprintf("cjson file %s error: %s (%s)", err.filename, err.message, strings.Join(err.deco, " <- "))
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err *Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

func (err *Error) FileName() string { return err.filename }

func (err *Error) Critical() bool { return err.critical }
