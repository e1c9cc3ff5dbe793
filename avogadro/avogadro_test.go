/*
 * avogadro_test.go, part of avoforce.
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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/qm"
	v3 "github.com/rmera/avoforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//fakeCalc returns a fixed energy and forces equal to minus the coordinates.
//It keeps the coordinates it was called with.
type fakeCalc struct {
	energy float64
	err    error
	seen   [][][]float64
}

func (F *fakeCalc) Calculate(ctx context.Context, coords *v3.Matrix) (*qm.Result, error) {
	F.seen = append(F.seen, coords.Rows())
	if F.err != nil {
		return nil, F.err
	}
	forces := coords.Clone()
	forces.Scale(-1, forces)
	return &qm.Result{Energy: F.energy, Forces: forces}, nil
}

func h2(Te *testing.T) *chem.Molecule {
	coords, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, 0.74})
	require.NoError(Te, err)
	mol, err := chem.NewMolecule(chem.NewTopology(0, 1, []*chem.Atom{chem.NewAtom(1, 1), chem.NewAtom(1, 2)}), coords, nil)
	require.NoError(Te, err)
	return mol
}

func matterSimMetadata() Metadata {
	return MetadataFrom(qm.NewMatterSimHandle().Describe())
}

func TestMetadataAvailable(Te *testing.T) {
	var out bytes.Buffer
	require.NoError(Te, WriteMetadata(&out, matterSimMetadata(), true))
	s := out.String()
	require.True(Te, strings.HasSuffix(s, "}\n"))
	var m map[string]interface{}
	require.NoError(Te, json.Unmarshal(out.Bytes(), &m))
	assert.Equal(Te, "MatterSim-5M", m["name"])
	assert.Equal(Te, "MatterSim-5M", m["identifier"])
	assert.Equal(Te, "Calculate MatterSim energies and gradients with 5M model", m["description"])
	assert.Equal(Te, "cjson", m["inputFormat"])
	assert.Equal(Te, "1-89", m["elements"])
	for _, k := range []string{"unitCell", "gradients", "ion", "radical"} {
		assert.Equal(Te, true, m[k], k)
	}
	assert.Len(Te, m, 9)
	prev := -1
	for _, k := range []string{"name", "identifier", "description", "inputFormat", "elements", "unitCell", "gradients", "ion", "radical"} {
		i := strings.Index(s, strconv.Quote(k))
		assert.Greater(Te, i, prev, k)
		prev = i
	}
}

func TestMetadataUnavailable(Te *testing.T) {
	var out bytes.Buffer
	require.NoError(Te, WriteMetadata(&out, matterSimMetadata(), false))
	assert.Equal(Te, "{}\n", out.String())
}

func TestDisplayName(Te *testing.T) {
	md := matterSimMetadata()
	name, err := DisplayName(md, true)
	require.NoError(Te, err)
	assert.Equal(Te, md.Name, name)

	_, err = DisplayName(md, false)
	require.Error(Te, err)
	assert.True(Te, errors.Is(err, ErrUnavailable))
	var aerr *Error
	require.True(Te, errors.As(err, &aerr))
	assert.Equal(Te, "MatterSim is unavailable", aerr.Message())
}

func TestOneCycle(Te *testing.T) {
	calc := &fakeCalc{energy: 1}
	var out bytes.Buffer
	s := NewSession(h2(Te), calc, strings.NewReader("0 0 0.1\n0 0 0.9\n"), &out)
	require.NoError(Te, s.Run(context.Background()))
	assert.Equal(Te, 1, s.Cycles())
	assert.Equal(Te, [][][]float64{{{0, 0, 0.1}, {0, 0, 0.9}}}, calc.seen)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(Te, lines, 4)
	assert.Equal(Te, 1, strings.Count(out.String(), "AvogadroEnergy:"))
	assert.Equal(Te, 1, strings.Count(out.String(), "AvogadroGradient:"))
	assert.NotContains(Te, out.String(), "[")
	assert.NotContains(Te, out.String(), "]")
	assert.True(Te, strings.HasPrefix(lines[0], "AvogadroEnergy: "))
	assert.Equal(Te, "AvogadroGradient:", lines[1])
	for _, l := range lines[2:] {
		fields := strings.Fields(l)
		require.Len(Te, fields, 3)
		for _, f := range fields {
			_, err := strconv.ParseFloat(f, 64)
			assert.NoError(Te, err)
		}
	}
}

func TestUnitConversion(Te *testing.T) {
	calc := &fakeCalc{energy: -2.5}
	var out bytes.Buffer
	s := NewSession(h2(Te), calc, strings.NewReader("1 -2 3\n0 0 0.5\n"), &out)
	require.NoError(Te, s.Run(context.Background()))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	e, err := strconv.ParseFloat(strings.TrimPrefix(lines[0], "AvogadroEnergy: "), 64)
	require.NoError(Te, err)
	assert.InDelta(Te, -2.5*23.060548867, e, 1e-9)
	//forces are -coords, so the gradient is coords*23.06...
	want := [][]float64{{1, -2, 3}, {0, 0, 0.5}}
	for i, l := range lines[2:] {
		for j, f := range strings.Fields(l) {
			g, err := strconv.ParseFloat(f, 64)
			require.NoError(Te, err)
			assert.InDelta(Te, want[i][j]*23.060548867, g, 1e-9)
		}
	}
}

func TestMalformedLineKeepsAtom(Te *testing.T) {
	calc := &fakeCalc{}
	var out bytes.Buffer
	in := "0 0\n1 1 1\n" + "\n2 2 2\n" + "3 3 3 3\n4 4 4\n"
	s := NewSession(h2(Te), calc, strings.NewReader(in), &out)
	require.NoError(Te, s.Run(context.Background()))
	require.Equal(Te, 3, s.Cycles())
	assert.Equal(Te, [][]float64{{0, 0, 0}, {1, 1, 1}}, calc.seen[0])
	assert.Equal(Te, [][]float64{{0, 0, 0}, {2, 2, 2}}, calc.seen[1])
	assert.Equal(Te, [][]float64{{0, 0, 0}, {4, 4, 4}}, calc.seen[2])
	assert.Equal(Te, 3, strings.Count(out.String(), "AvogadroEnergy:"))
}

func TestCoordinatesCarryOver(Te *testing.T) {
	calc := &fakeCalc{}
	mol := h2(Te)
	s := NewSession(mol, calc, strings.NewReader("5 5 5\n6 6 6\nx\n7 7 7"), &bytes.Buffer{})
	require.NoError(Te, s.Run(context.Background()))
	require.Len(Te, calc.seen, 2)
	assert.Equal(Te, [][]float64{{5, 5, 5}, {7, 7, 7}}, calc.seen[1])
	assert.Equal(Te, [][]float64{{0, 0, 0}, {0, 0, 0.74}}, mol.Coords.Rows(), "the molecule is not modified")
}

func TestEOF(Te *testing.T) {
	s := NewSession(h2(Te), &fakeCalc{}, strings.NewReader(""), &bytes.Buffer{})
	assert.NoError(Te, s.Run(context.Background()))
	assert.Equal(Te, 0, s.Cycles())

	var out bytes.Buffer
	s = NewSession(h2(Te), &fakeCalc{}, strings.NewReader("0 0 0\n0 0 1\n0 0 0\n"), &out)
	err := s.Run(context.Background())
	assert.True(Te, errors.Is(err, ErrTruncatedCycle))
	assert.Equal(Te, 1, s.Cycles())
	assert.Equal(Te, 1, strings.Count(out.String(), "AvogadroEnergy:"))
}

func TestBadCoordinate(Te *testing.T) {
	var out bytes.Buffer
	s := NewSession(h2(Te), &fakeCalc{}, strings.NewReader("0 0 zero\n0 0 1\n"), &out)
	err := s.Run(context.Background())
	assert.True(Te, errors.Is(err, ErrBadCoordinate))
	assert.Empty(Te, out.String())
}

func TestNonFiniteCoordinate(Te *testing.T) {
	for _, in := range []string{"0 0 1e999\n0 0 1\n", "0 0 0\nnan 0 1\n", "0 0 0\n0 -Inf 1\n"} {
		var out bytes.Buffer
		calc := &fakeCalc{}
		s := NewSession(h2(Te), calc, strings.NewReader(in), &out)
		err := s.Run(context.Background())
		assert.True(Te, errors.Is(err, ErrBadCoordinate), in)
		assert.Contains(Te, err.Error(), "not a finite number", in)
		assert.Empty(Te, out.String(), in)
		assert.Equal(Te, 0, s.Cycles(), in)
	}
	//Still a plain float after the range check.
	var out bytes.Buffer
	s := NewSession(h2(Te), &fakeCalc{}, strings.NewReader("0 0 1e-999\n0 0 1\n"), &out)
	require.NoError(Te, s.Run(context.Background()))
	assert.Equal(Te, 1, s.Cycles())
}

func TestCalculationFails(Te *testing.T) {
	boom := errors.New("boom")
	var out bytes.Buffer
	s := NewSession(h2(Te), &fakeCalc{err: boom}, strings.NewReader("0 0 0\n0 0 1\n"), &out)
	err := s.Run(context.Background())
	assert.True(Te, errors.Is(err, boom))
	assert.Empty(Te, out.String())
}

func TestCanceled(Te *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calc := &fakeCalc{}
	s := NewSession(h2(Te), calc, strings.NewReader("0 0 0\n0 0 1\n"), &bytes.Buffer{})
	assert.True(Te, errors.Is(s.Run(ctx), context.Canceled))
	assert.Empty(Te, calc.seen)
}

func TestNewOutputMismatch(Te *testing.T) {
	_, err := NewOutput(&qm.Result{Energy: 1, Forces: v3.Zeros(3)}, 2)
	assert.True(Te, errors.Is(err, ErrBadResult))
	_, err = NewOutput(nil, 2)
	assert.True(Te, errors.Is(err, ErrBadResult))
}

func TestOutputFormat(Te *testing.T) {
	g, err := v3.NewMatrix([]float64{1, -0.5, 0, 2.25, 0, -3})
	require.NoError(Te, err)
	var out bytes.Buffer
	_, err = (&Output{Energy: -12.5, Gradient: g}).WriteTo(&out)
	require.NoError(Te, err)
	assert.Equal(Te, "AvogadroEnergy: -12.5\nAvogadroGradient:\n1 -0.5 0\n2.25 0 -3\n", out.String())
}

type fakeRecorder struct {
	energies []float64
	fail     bool
}

func (F *fakeRecorder) WNext(coords *v3.Matrix, energy float64) error {
	if F.fail {
		return errors.New("disk full")
	}
	F.energies = append(F.energies, energy)
	return nil
}

func TestRecorder(Te *testing.T) {
	rec := &fakeRecorder{}
	s := NewSession(h2(Te), &fakeCalc{energy: 1}, strings.NewReader("0 0 0\n0 0 1\n0 0 0\n0 0 2\n"), &bytes.Buffer{})
	s.SetRecorder(rec)
	require.NoError(Te, s.Run(context.Background()))
	require.Len(Te, rec.energies, 2)
	assert.InDelta(Te, 23.060548867, rec.energies[0], 1e-9)

	var out bytes.Buffer
	s = NewSession(h2(Te), &fakeCalc{energy: 1}, strings.NewReader("0 0 0\n0 0 1\n0 0 0\n0 0 2\n"), &out)
	s.SetRecorder(&fakeRecorder{fail: true})
	require.NoError(Te, s.Run(context.Background()))
	assert.Equal(Te, 2, strings.Count(out.String(), "AvogadroEnergy:"))
}
