/*
 * writer.go, part of avoforce.
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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	chem "github.com/rmera/avoforce"
	v3 "github.com/rmera/avoforce/v3"
)

//Writer writes frames to a trajectory file.
type Writer struct {
	mu        sync.Mutex //WNext and Close can come from different goroutines.
	f         *os.File
	h         io.WriteCloser //the compressor, if any
	w         *bufio.Writer
	mol       chem.Atomer
	natoms    int
	filename  string
	writeable bool
	frames    int
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

//NewWriter creates the file name and returns a Writer for frames of mol.
//The compression is chosen from the file extension.
func NewWriter(name string, mol chem.Atomer) (*Writer, error) {
	W := new(Writer)
	var err error
	W.f, err = os.Create(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"NewWriter"}, true}
	}
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".gz"):
		W.h = gzip.NewWriter(W.f)
	case strings.HasSuffix(strings.ToLower(name), ".zst"):
		W.h, err = zstd.NewWriter(W.f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		W.h = nopCloser{W.f}
	}
	if err != nil {
		W.f.Close()
		return nil, Error{"Can't create compressor: " + err.Error(), name, []string{"NewWriter"}, true}
	}
	W.w = bufio.NewWriter(W.h)
	W.mol = mol
	W.natoms = mol.Len()
	W.filename = name
	W.writeable = true
	return W, nil
}

//Len returns the number of atoms in each frame.
func (W *Writer) Len() int {
	return W.natoms
}

//Frames returns the number of frames written so far.
func (W *Writer) Frames() int {
	W.mu.Lock()
	defer W.mu.Unlock()
	return W.frames
}

//WNext writes coords as the next frame. energy, in kcal/mol, goes in the comment line.
func (W *Writer) WNext(coords *v3.Matrix, energy float64) error {
	W.mu.Lock()
	defer W.mu.Unlock()
	if !W.writeable {
		return Error{TrajUnIniWrite, W.filename, []string{"WNext"}, true}
	}
	if coords == nil {
		return Error{NilCoordinates, W.filename, []string{"WNext"}, true}
	}
	if v := coords.NVecs(); v != W.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", v, W.natoms), W.filename, []string{"WNext"}, true}
	}
	comment := fmt.Sprintf("frame %d energy %.6f kcal/mol", W.frames+1, energy)
	if err := chem.XYZWrite(W.w, coords, W.mol, comment); err != nil {
		return errDecorate(err, "WNext")
	}
	//Each frame is flushed to the compressor, so an interrupted run still leaves
	//usable frames in plain files.
	if err := W.w.Flush(); err != nil {
		return Error{err.Error(), W.filename, []string{"WNext"}, true}
	}
	W.frames++
	return nil
}

//Close flushes the frames and closes the file. It can be called more than once.
func (W *Writer) Close() error {
	if W == nil {
		return nil
	}
	W.mu.Lock()
	defer W.mu.Unlock()
	if !W.writeable {
		return nil
	}
	W.writeable = false
	err := W.w.Flush()
	if cerr := W.h.Close(); err == nil {
		err = cerr
	}
	if cerr := W.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Error{err.Error(), W.filename, []string{"Close"}, true}
	}
	return nil
}
