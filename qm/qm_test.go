/*
 * qm_test.go, part of avoforce.
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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/internal/config"
	v3 "github.com/rmera/avoforce/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "AVOFORCE_HELPER_WORKER"

//h2 returns a hydrogen molecule, optionally in a cubic box.
func h2(Te *testing.T, box float64) *chem.Molecule {
	coords, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, 0.74})
	require.NoError(Te, err)
	var cell *chem.Cell
	if box > 0 {
		vecs, err := v3.NewMatrix([]float64{box, 0, 0, 0, box, 0, 0, 0, box})
		require.NoError(Te, err)
		cell, err = chem.NewCell(vecs)
		require.NoError(Te, err)
	}
	mol, err := chem.NewMolecule(chem.NewTopology(0, 1, []*chem.Atom{chem.NewAtom(1, 1), chem.NewAtom(1, 2)}), coords, cell)
	require.NoError(Te, err)
	return mol
}

//harmonic is the toy potential of the fake worker and server: E=0.5*sum(r^2), F=-r.
func harmonic(positions [][]float64) (float64, [][]float64) {
	var e float64
	forces := make([][]float64, len(positions))
	for i, r := range positions {
		forces[i] = make([]float64, 3)
		for j, x := range r {
			e += 0.5 * x * x
			forces[i][j] = -x
		}
	}
	return e, forces
}

//TestHelperWorker is not a real test. It plays the MatterSim worker when
//the test binary is started by a MatterSimHandle.
func TestHelperWorker(Te *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}
	os.Exit(fakeWorker(args, os.Stdin, os.Stdout))
}

func fakeWorker(args []string, in io.Reader, out io.Writer) int {
	model, device, probe := "", "auto", false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--probe":
			probe = true
		case "--model":
			i++
			model = args[i]
		case "--device":
			i++
			device = args[i]
		}
	}
	enc := json.NewEncoder(out)
	if probe {
		enc.Encode(map[string]interface{}{"ok": true, "cuda": false})
		return 0
	}
	if model == "missing" {
		enc.Encode(map[string]interface{}{"ok": false, "error": "can't load missing"})
		return 1
	}
	if device == "auto" {
		device = "cpu"
	}
	fmt.Fprintln(os.Stderr, "fake worker loaded", model)
	enc.Encode(map[string]interface{}{"ok": true, "device": device, "cuda": false})
	dec := json.NewDecoder(in)
	for {
		var req workerRequest
		if err := dec.Decode(&req); err != nil {
			return 0
		}
		switch {
		case model == "crash":
			return 2
		case model == "failing":
			enc.Encode(map[string]interface{}{"id": req.ID, "error": "model exploded"})
			continue
		case req.PBC && len(req.Cell) != 3:
			enc.Encode(map[string]interface{}{"id": req.ID, "error": "bad cell"})
			continue
		}
		e, f := harmonic(req.Positions)
		enc.Encode(map[string]interface{}{"id": req.ID, "energy": e, "forces": f})
	}
}

func helperHandle(Te *testing.T, model string) *MatterSimHandle {
	Te.Setenv(helperEnv, "1")
	h := NewMatterSimHandle()
	h.SetCommand(os.Args[0], "-test.run=^TestHelperWorker$", "--")
	h.SetModel(model)
	return h
}

func TestMatterSimProbe(Te *testing.T) {
	h := helperHandle(Te, "any")
	c := h.Probe(context.Background())
	assert.True(Te, c.Available)
	assert.False(Te, c.Accelerator)

	h.SetCommand(filepath.Join(Te.TempDir(), "no-such-python"))
	c = h.Probe(context.Background())
	assert.False(Te, c.Available)
	assert.NotEmpty(Te, c.Reason)
}

func TestMatterSimCalculate(Te *testing.T) {
	h := helperHandle(Te, "MatterSim-v1.0.0-5M.pth")
	ctx := context.Background()
	mol := h2(Te, 0)
	require.NoError(Te, h.Start(ctx, mol))
	defer h.Close()
	assert.Equal(Te, "cpu", h.Device())
	for _, z := range []float64{0.74, 0.80, 1.0} {
		coords, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, z})
		require.NoError(Te, err)
		res, err := h.Calculate(ctx, coords)
		require.NoError(Te, err)
		assert.InDelta(Te, 0.5*z*z, res.Energy, 1e-12)
		assert.Equal(Te, [][]float64{{0, 0, 0}, {0, 0, -z}}, res.Forces.Rows())
	}
	_, err := h.Calculate(ctx, v3.Zeros(3))
	assert.True(Te, errors.Is(err, ErrCantInput))
	nan, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, math.NaN()})
	require.NoError(Te, err)
	_, err = h.Calculate(ctx, nan)
	assert.True(Te, errors.Is(err, ErrCantInput))
	//The worker is still usable after a rejected input.
	res, err := h.Calculate(ctx, mol.Coords)
	require.NoError(Te, err)
	assert.InDelta(Te, 0.5*0.74*0.74, res.Energy, 1e-12)
	require.NoError(Te, h.Close())
	_, err = h.Calculate(ctx, mol.Coords)
	assert.True(Te, errors.Is(err, ErrNotStarted))
}

func TestMatterSimPeriodic(Te *testing.T) {
	h := helperHandle(Te, "MatterSim-v1.0.0-5M.pth")
	mol := h2(Te, 10)
	require.NoError(Te, h.Start(context.Background(), mol))
	defer h.Close()
	res, err := h.Calculate(context.Background(), mol.Coords)
	require.NoError(Te, err)
	assert.InDelta(Te, 0.5*0.74*0.74, res.Energy, 1e-12)
}

func TestMatterSimFailures(Te *testing.T) {
	ctx := context.Background()
	h := helperHandle(Te, "missing")
	err := h.Start(ctx, h2(Te, 0))
	assert.True(Te, errors.Is(err, ErrModelNotFound))

	h = helperHandle(Te, filepath.Join(Te.TempDir(), "nothere.pth"))
	err = h.Start(ctx, h2(Te, 0))
	assert.True(Te, errors.Is(err, ErrModelNotFound))

	h = helperHandle(Te, "failing")
	require.NoError(Te, h.Start(ctx, h2(Te, 0)))
	_, err = h.Calculate(ctx, h2(Te, 0).Coords)
	assert.True(Te, errors.Is(err, ErrNoEnergy))
	assert.Contains(Te, err.Error(), "model exploded")
	h.Close()

	h = helperHandle(Te, "crash")
	require.NoError(Te, h.Start(ctx, h2(Te, 0)))
	_, err = h.Calculate(ctx, h2(Te, 0).Coords)
	assert.True(Te, errors.Is(err, ErrNotRunning))
	h.Close()
}

func TestUnsupportedElement(Te *testing.T) {
	ctx := context.Background()
	coords, err := v3.NewMatrix([]float64{0, 0, 0, 0, 0, 2.5})
	require.NoError(Te, err)
	thh, err := chem.NewMolecule(chem.NewTopology(0, 1, []*chem.Atom{chem.NewAtom(90, 1), chem.NewAtom(1, 2)}), coords, nil)
	require.NoError(Te, err)

	h := helperHandle(Te, "MatterSim-v1.0.0-5M.pth")
	err = h.Start(ctx, thh)
	assert.True(Te, errors.Is(err, ErrUnsupportedElement))
	assert.Contains(Te, err.Error(), "atom 1 is Th")
	_, err = h.Calculate(ctx, coords)
	assert.True(Te, errors.Is(err, ErrNotStarted))

	r := NewRemoteHandle(fakeServer(Te).URL)
	err = r.Start(ctx, thh)
	assert.True(Te, errors.Is(err, ErrUnsupportedElement))

	x := NewXTBHandle()
	err = x.Start(ctx, thh)
	assert.True(Te, errors.Is(err, ErrUnsupportedElement))
}

func TestResultFromReply(Te *testing.T) {
	e := 1.5
	_, err := resultFromReply(nil, [][]float64{{0, 0, 0}}, 1, MatterSim, "test")
	assert.True(Te, errors.Is(err, ErrNoEnergy))
	_, err = resultFromReply(&e, [][]float64{{0, 0, 0}}, 2, MatterSim, "test")
	assert.True(Te, errors.Is(err, ErrNoForces))
	_, err = resultFromReply(&e, [][]float64{{0, 0}}, 1, MatterSim, "test")
	assert.True(Te, errors.Is(err, ErrNoForces))
	res, err := resultFromReply(&e, [][]float64{{1, 2, 3}}, 1, MatterSim, "test")
	require.NoError(Te, err)
	assert.Equal(Te, 1.5, res.Energy)
}

func TestReadTMGradient(Te *testing.T) {
	f, err := os.Open("testdata/gradient")
	require.NoError(Te, err)
	defer f.Close()
	energy, grad, err := readTMGradient(f, 2)
	require.NoError(Te, err)
	assert.InDelta(Te, -1.0, energy, 1e-12)
	assert.InDeltaSlice(Te, []float64{1e-3, 0, -2e-3}, grad.Row(nil, 0), 1e-15)
	assert.InDeltaSlice(Te, []float64{-1e-3, 0, 2e-3}, grad.Row(nil, 1), 1e-15)

	_, _, err = readTMGradient(strings.NewReader("$grad\n$end\n"), 2)
	assert.True(Te, errors.Is(err, ErrNoEnergy))
	_, _, err = readTMGradient(strings.NewReader("  cycle =  1  SCF energy = -1.0 |dE/xyz| = 0.1\n 0 0 0 h\n"), 2)
	assert.True(Te, errors.Is(err, ErrNoForces))
}

func TestXTBOptions(Te *testing.T) {
	x := NewXTBHandle()
	x.SetnCPU(4)
	x.SetMethod("gfnff")
	x.mol = h2(Te, 0)
	assert.Equal(Te, []string{"avoforce.xyz", "--grad", "--chrg", "0", "--uhf", "0", "-P", "4", "--gfnff"}, x.options())
	x.SetMethod("")
	x.SetnCPU(1)
	assert.Equal(Te, []string{"avoforce.xyz", "--grad", "--chrg", "0", "--uhf", "0", "--gfn", "2"}, x.options())
}

//fakeXTB writes a shell script that behaves like xtb, as far as we care.
func fakeXTB(Te *testing.T) string {
	if runtime.GOOS == "windows" {
		Te.Skip("fake xtb is a shell script")
	}
	grad, err := os.ReadFile("testdata/gradient")
	require.NoError(Te, err)
	path := filepath.Join(Te.TempDir(), "xtb")
	script := "#!/bin/sh\n[ -f \"$1\" ] || exit 1\ncat > gradient <<'XTBEOF'\n" + string(grad) + "XTBEOF\necho normal termination of xtb\n"
	require.NoError(Te, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestXTBCalculate(Te *testing.T) {
	x := NewXTBHandle()
	x.SetCommand(fakeXTB(Te))
	assert.True(Te, x.Probe(context.Background()).Available)
	ctx := context.Background()
	mol := h2(Te, 0)
	require.NoError(Te, x.Start(ctx, mol))
	dir := x.dir
	res, err := x.Calculate(ctx, mol.Coords)
	require.NoError(Te, err)
	assert.InDelta(Te, -chem.H2EV, res.Energy, 1e-9)
	assert.InDelta(Te, -1e-3*chem.HBohr2EVA, res.Forces.At(0, 0), 1e-12)
	assert.InDelta(Te, -2e-3*chem.HBohr2EVA, res.Forces.At(1, 2), 1e-12)
	require.NoError(Te, x.Close())
	_, err = os.Stat(dir)
	assert.True(Te, os.IsNotExist(err))

	err = x.Start(ctx, h2(Te, 10))
	assert.True(Te, errors.Is(err, ErrPeriodicUnsupported))
}

func TestXTBNotInstalled(Te *testing.T) {
	x := NewXTBHandle()
	x.SetCommand(filepath.Join(Te.TempDir(), "xtb"))
	c := x.Probe(context.Background())
	assert.False(Te, c.Available)
}

func fakeServer(Te *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","cuda":true}`))
	})
	mux.HandleFunc("/v1/calculate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-Request-ID") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(req.Numbers) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]string{"error": "out of memory"})
			return
		}
		e, f := harmonic(req.Positions)
		json.NewEncoder(w).Encode(map[string]interface{}{"energy": e, "forces": f})
	})
	srv := httptest.NewServer(mux)
	Te.Cleanup(srv.Close)
	return srv
}

func TestRemote(Te *testing.T) {
	srv := fakeServer(Te)
	r := NewRemoteHandle(srv.URL + "/")
	r.SetTimeout(5 * time.Second)
	ctx := context.Background()
	c := r.Probe(ctx)
	assert.True(Te, c.Available)
	assert.True(Te, c.Accelerator)

	_, err := r.Calculate(ctx, v3.Zeros(2))
	assert.True(Te, errors.Is(err, ErrNotStarted))

	mol := h2(Te, 10)
	require.NoError(Te, r.Start(ctx, mol))
	res, err := r.Calculate(ctx, mol.Coords)
	require.NoError(Te, err)
	assert.InDelta(Te, 0.5*0.74*0.74, res.Energy, 1e-12)
	assert.Equal(Te, -0.74, res.Forces.At(1, 2))
	require.NoError(Te, r.Close())

	coords, _ := v3.NewMatrix([]float64{0, 0, 0})
	one, err := chem.NewMolecule(chem.NewTopology(0, 2, []*chem.Atom{chem.NewAtom(1, 1)}), coords, nil)
	require.NoError(Te, err)
	require.NoError(Te, r.Start(ctx, one))
	_, err = r.Calculate(ctx, coords)
	assert.True(Te, errors.Is(err, ErrNoEnergy))
	assert.Contains(Te, err.Error(), "out of memory")
}

func TestRemoteDown(Te *testing.T) {
	srv := fakeServer(Te)
	url := srv.URL
	srv.Close()
	r := NewRemoteHandle(url)
	assert.False(Te, r.Probe(context.Background()).Available)
}

func TestNew(Te *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	h, err := New(cfg, nil)
	require.NoError(Te, err)
	assert.IsType(Te, &MatterSimHandle{}, h)
	assert.Equal(Te, "MatterSim-5M", h.Describe().Identifier)

	cfg.Backend = config.BackendXTB
	h, err = New(cfg, nil)
	require.NoError(Te, err)
	assert.False(Te, h.Describe().UnitCell)

	cfg.Backend = config.BackendRemote
	cfg.Remote.URL = "http://localhost:1"
	h, err = New(cfg, nil)
	require.NoError(Te, err)
	assert.IsType(Te, &RemoteHandle{}, h)

	cfg.Backend = "gaussian"
	_, err = New(cfg, nil)
	assert.True(Te, errors.Is(err, ErrUnknownBackend))
}
