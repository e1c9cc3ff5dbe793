/*
 * json.go, part of avoforce.
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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	chem "github.com/rmera/avoforce"
	v3 "github.com/rmera/avoforce/v3"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

//document is the subset of a CJSON document that we care about.
type document struct {
	Atoms struct {
		Elements struct {
			Number []int `json:"number"`
		} `json:"elements"`
		Coords struct {
			ThreeD json.RawMessage `json:"3d"`
		} `json:"coords"`
	} `json:"atoms"`
	UnitCell *struct {
		CellVectors []float64 `json:"cellVectors"`
	} `json:"unitCell"`
	Properties struct {
		TotalCharge           *int `json:"totalCharge"`
		TotalSpinMultiplicity *int `json:"totalSpinMultiplicity"`
	} `json:"properties"`
}

//ReadFile reads the CJSON file with the given name and returns
//the molecule in it.
func ReadFile(name string) (*chem.Molecule, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, newError(err.Error(), name, "ReadFile")
	}
	defer f.Close()
	mol, err := Decode(f)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.filename = name
		}
		return nil, chem.ErrDecorate(err, "ReadFile")
	}
	return mol, nil
}

//Decode reads a CJSON document from in, decompressing it first if needed,
//and returns the molecule in it. The molecule is periodic if, and only
//if, the document has a unitCell block.
func Decode(in io.Reader) (*chem.Molecule, error) {
	r, err := decompress(in)
	if err != nil {
		return nil, chem.ErrDecorate(err, "Decode")
	}
	defer r.Close()
	doc := new(document)
	if err := json.NewDecoder(r).Decode(doc); err != nil {
		return nil, newError(fmt.Sprintf("Malformed CJSON: %v", err), "", "Decode")
	}
	mol, err := doc.molecule()
	if err != nil {
		return nil, chem.ErrDecorate(err, "Decode")
	}
	return mol, nil
}

func (D *document) molecule() (*chem.Molecule, error) {
	const funcname = "molecule"
	numbers := D.Atoms.Elements.Number
	if len(numbers) == 0 {
		return nil, newError("No atoms.elements.number in CJSON", "", funcname)
	}
	atoms := make([]*chem.Atom, len(numbers))
	for i, z := range numbers {
		if chem.Symbol(z) == "" {
			return nil, newError(fmt.Sprintf("Atom %d has an invalid atomic number: %d", i, z), "", funcname)
		}
		atoms[i] = chem.NewAtom(z, i+1)
	}
	raw, err := coords3D(D.Atoms.Coords.ThreeD)
	if err != nil {
		return nil, chem.ErrDecorate(err, funcname)
	}
	if len(raw) != 3*len(numbers) {
		return nil, newError(fmt.Sprintf("Expected %d coordinates for %d atoms, got %d", 3*len(numbers), len(numbers), len(raw)), "", funcname)
	}
	coords, err := v3.NewMatrix(raw)
	if err != nil {
		return nil, newError(err.Error(), "", funcname)
	}
	charge, multi := 0, 1
	if D.Properties.TotalCharge != nil {
		charge = *D.Properties.TotalCharge
	}
	if D.Properties.TotalSpinMultiplicity != nil {
		multi = *D.Properties.TotalSpinMultiplicity
	}
	var cell *chem.Cell
	if D.UnitCell != nil {
		cell, err = unitCell(D.UnitCell.CellVectors)
		if err != nil {
			return nil, chem.ErrDecorate(err, funcname)
		}
	}
	mol, err := chem.NewMolecule(chem.NewTopology(charge, multi, atoms), coords, cell)
	if err != nil {
		return nil, newError(err.Error(), "", funcname)
	}
	return mol, nil
}

//coords3D accepts either a flat array of 3N floats, which is what Avogadro
//writes, or an array of N 3-element arrays.
func coords3D(raw json.RawMessage) ([]float64, error) {
	const funcname = "coords3D"
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, newError("No atoms.coords.3d in CJSON", "", funcname)
	}
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, newError(fmt.Sprintf("Malformed atoms.coords.3d: %v", err), "", funcname)
	}
	flat = make([]float64, 0, 3*len(nested))
	for i, v := range nested {
		if len(v) != 3 {
			return nil, newError(fmt.Sprintf("Coordinates for atom %d have %d elements", i, len(v)), "", funcname)
		}
		flat = append(flat, v...)
	}
	return flat, nil
}

func unitCell(vectors []float64) (*chem.Cell, error) {
	if len(vectors) != 9 {
		return nil, newError(fmt.Sprintf("unitCell.cellVectors must have 9 elements, got %d", len(vectors)), "", "unitCell")
	}
	lattice, err := v3.NewMatrix(vectors)
	if err != nil {
		return nil, newError(err.Error(), "", "unitCell")
	}
	cell, err := chem.NewCell(lattice)
	if err != nil {
		return nil, newError(err.Error(), "", "unitCell")
	}
	return cell, nil
}

//decompress returns a reader with the decompressed contents of in, guessing
//the compression, if any, from the first bytes of the stream.
func decompress(in io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(in)
	head, _ := br.Peek(4) //a short read just means "not compressed".
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, newError(fmt.Sprintf("Can't open gzip stream: %v", err), "", "decompress")
		}
		return gz, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, newError(fmt.Sprintf("Can't open zstd stream: %v", err), "", "decompress")
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(br), nil
	}
}
