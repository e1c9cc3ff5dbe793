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

package qm

import (
	"errors"
	"fmt"
	"strings"
)

//Sentinel errors. Errors returned by the package wrap one of these,
//so they can be checked with errors.Is.
var (
	ErrUnknownBackend      = errors.New("unknown backend")
	ErrNotStarted          = errors.New("backend not started")
	ErrNotRunning          = errors.New("program can't be executed")
	ErrCantInput           = errors.New("can't write input")
	ErrNoEnergy            = errors.New("no energy in output")
	ErrNoForces            = errors.New("no forces or gradient in output")
	ErrModelNotFound       = errors.New("model file not found")
	ErrPeriodicUnsupported = errors.New("periodic systems are not supported by this backend")
	ErrUnsupportedElement  = errors.New("element not supported by this backend")
	ErrProtocol            = errors.New("malformed answer from backend")
)

//Error is the error type of the package.
type Error struct {
	err        error  //one of the sentinel errors above
	code       string //the backend that failed
	inputname  string
	additional string
	deco       []string
	critical   bool
}

func newError(err error, code, inputname, additional, caller string) *Error {
	return &Error{err: err, code: code, inputname: inputname, additional: additional, deco: []string{caller}, critical: true}
}

//Error returns a string with an error message.
func (err *Error) Error() string {
	msg := fmt.Sprintf("qm %s", err.code)
	if err.inputname != "" {
		msg += " (" + err.inputname + ")"
	}
	msg += ": " + err.err.Error()
	if err.additional != "" {
		msg += ": " + err.additional
	}
	return msg + " [" + strings.Join(err.deco, " <- ") + "]"
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

//Critical returns whether the error is critical or it can be ignored
func (err *Error) Critical() bool { return err.critical }
