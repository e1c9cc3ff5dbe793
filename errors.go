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

package chem

import (
	"fmt"
	"strings"
)

//CError is the error type for the chem package.
type CError struct {
	msg  string
	deco []string
}

//NewError returns a CError with the given message, decorated with caller.
func NewError(caller, format string, a ...interface{}) *CError {
	return &CError{msg: fmt.Sprintf(format, a...), deco: []string{caller}}
}

//Error returns a string with an error message.
func (err *CError) Error() string {
	if len(err.deco) == 0 {
		return err.msg
	}
	return fmt.Sprintf("%s (%s)", err.msg, strings.Join(err.deco, " <- "))
}

//Decorate will add the dec string to the decoration slice of strings of the error,
//and return the resulting slice.
func (err *CError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//ErrDecorate decorates err with caller if it implements Error,
//and returns it unchanged otherwise.
func ErrDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.Decorate(caller)
	}
	return err
}
