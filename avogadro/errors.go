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

package avogadro

import (
	"errors"
	"fmt"
	"strings"
)

var (
	//ErrUnavailable means the backend can't be used, so the plugin has nothing to offer.
	ErrUnavailable = errors.New("backend unavailable")
	//ErrTruncatedCycle means the input ended in the middle of a set of coordinates.
	ErrTruncatedCycle = errors.New("input ended in the middle of a cycle")
	//ErrBadCoordinate means a coordinate line had 3 fields, not all of them finite numbers.
	ErrBadCoordinate = errors.New("bad coordinate")
	//ErrBadResult means the backend returned forces for the wrong number of atoms.
	ErrBadResult = errors.New("backend result doesn't match the molecule")
)

//Error is the error type of the package. It wraps one of the errors above.
type Error struct {
	err      error
	message  string
	deco     []string
	critical bool
}

func newError(err error, message, caller string) *Error {
	return &Error{err: err, message: message, deco: []string{caller}, critical: true}
}

func (err *Error) Error() string {
	msg := err.err.Error()
	if err.message != "" {
		msg = fmt.Sprintf("%s: %s", msg, err.message)
	}
	return fmt.Sprintf("avogadro: %s (%s)", msg, strings.Join(err.deco, " <- "))
}

//Unwrap returns the sentinel error wrapped by err.
func (err *Error) Unwrap() error { return err.err }

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err *Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//Message returns the message of the error without the decorations.
func (err *Error) Message() string { return err.message }

func (err *Error) Critical() bool { return err.critical }
