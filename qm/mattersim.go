/*
 * mattersim.go, part of avoforce.
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

//In order to use this part of the library you need a Python environment with
//torch, ase and mattersim (https://github.com/microsoft/mattersim) installed.
//Please cite the MatterSim references if you use it.

package qm

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/internal/logging"
	v3 "github.com/rmera/avoforce/v3"
)

//go:embed mattersim_worker.py
var matterSimWorker string

//workerRequest is sent to the worker for each calculation.
type workerRequest struct {
	ID        string      `json:"id"`
	Numbers   []int       `json:"numbers"`
	Positions [][]float64 `json:"positions"`
	Cell      [][]float64 `json:"cell,omitempty"`
	PBC       bool        `json:"pbc"`
}

//workerReply is what the worker answers, both to the startup handshake
//(OK, Device, CUDA) and to each request (ID, Energy, Forces).
type workerReply struct {
	OK     bool        `json:"ok"`
	Device string      `json:"device"`
	CUDA   bool        `json:"cuda"`
	ID     string      `json:"id"`
	Energy *float64    `json:"energy"`
	Forces [][]float64 `json:"forces"`
	Error  string      `json:"error"`
}

//MatterSimHandle runs MatterSim in a Python worker process that stays
//alive between calculations, so the model is loaded only once.
type MatterSimHandle struct {
	python       string
	model        string
	device       string
	probeTimeout time.Duration
	command      []string //replaces the python invocation if not nil
	log          logging.Logger

	mu      sync.Mutex //Close can be called while a calculation is running.
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	dec     *json.Decoder
	numbers []int
	cell    [][]float64
}

//NewMatterSimHandle returns a handle with its default settings.
func NewMatterSimHandle() *MatterSimHandle {
	run := new(MatterSimHandle)
	run.SetDefaults()
	return run
}

//MatterSimHandle methods

func (O *MatterSimHandle) SetDefaults() {
	O.python = "python3"
	O.model = "MatterSim-v1.0.0-5M.pth"
	O.device = "auto"
	O.probeTimeout = time.Minute
	O.log = logging.NewNopLogger()
}

//SetPython sets the Python interpreter to use.
func (O *MatterSimHandle) SetPython(python string) { O.python = python }

//SetModel sets the checkpoint, either a name known to mattersim or a file.
func (O *MatterSimHandle) SetModel(model string) { O.model = model }

//SetDevice sets the torch device: "auto", "cpu" or "cuda".
func (O *MatterSimHandle) SetDevice(device string) { O.device = device }

//Device returns the device in use. After Start, "auto" has been
//resolved to the actual device.
func (O *MatterSimHandle) Device() string { return O.device }

func (O *MatterSimHandle) SetProbeTimeout(t time.Duration) { O.probeTimeout = t }

func (O *MatterSimHandle) SetLogger(log logging.Logger) { O.log = log }

//SetCommand replaces the Python invocation of the worker with argv.
//The worker flags are appended to argv. Mostly useful for testing.
func (O *MatterSimHandle) SetCommand(argv ...string) { O.command = argv }

func (O *MatterSimHandle) Describe() Description {
	return Description{
		Name:        "MatterSim-5M",
		Identifier:  "MatterSim-5M",
		Text:        "Calculate MatterSim energies and gradients with 5M model",
		Elements:    chem.ElementRange{First: 1, Last: 89},
		UnitCell:    true,
		Ion:         true,
		Radical:     true,
		Unavailable: "MatterSim is unavailable",
	}
}

func (O *MatterSimHandle) argv(extra ...string) []string {
	var ret []string
	if O.command != nil {
		ret = append(ret, O.command...)
	} else {
		ret = append(ret, O.python, "-u", "-c", matterSimWorker)
	}
	return append(ret, extra...)
}

//Probe runs the worker in probe mode, which only checks that all the needed
//Python modules can be imported and whether CUDA is available.
func (O *MatterSimHandle) Probe(ctx context.Context) Capability {
	ctx, cancel := context.WithTimeout(ctx, O.probeTimeout)
	defer cancel()
	argv := O.argv("--probe")
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &logWriter{log: O.log}
	out, err := cmd.Output()
	var rep workerReply
	if jerr := json.Unmarshal(lastLine(out), &rep); jerr != nil {
		reason := fmt.Sprintf("no answer from worker: %v", jerr)
		if err != nil {
			reason = err.Error()
		}
		O.log.Debug("probe failed", logging.String("reason", reason))
		return Capability{Reason: reason}
	}
	if !rep.OK {
		O.log.Debug("probe failed", logging.String("reason", rep.Error))
		return Capability{Reason: rep.Error}
	}
	return Capability{Available: true, Accelerator: rep.CUDA}
}

//Start launches the worker, which loads the model. It returns when the
//worker reports the model as loaded, or with an error if it could not
//be loaded. The worker is killed when ctx is done.
func (O *MatterSimHandle) Start(ctx context.Context, mol *chem.Molecule) error {
	O.mu.Lock()
	defer O.mu.Unlock()
	if O.cmd != nil {
		return newError(ErrCantInput, MatterSim, O.model, "worker already started", "Start")
	}
	if err := checkElements(O.Describe(), mol, MatterSim, O.model); err != nil {
		return err
	}
	if strings.ContainsRune(O.model, os.PathSeparator) || strings.ContainsRune(O.model, '/') {
		if _, err := os.Stat(O.model); err != nil {
			return newError(ErrModelNotFound, MatterSim, O.model, err.Error(), "Start")
		}
	}
	O.numbers = mol.Numbers()
	O.cell = nil
	if mol.Periodic() {
		O.cell = mol.Cell.Vectors.Rows()
	}
	argv := O.argv("--model", O.model, "--device", O.device)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = &logWriter{log: O.log}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return newError(ErrNotRunning, MatterSim, O.model, err.Error(), "Start")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return newError(ErrNotRunning, MatterSim, O.model, err.Error(), "Start")
	}
	if err := cmd.Start(); err != nil {
		return newError(ErrNotRunning, MatterSim, O.model, err.Error(), "Start")
	}
	O.cmd = cmd
	O.stdin = stdin
	O.dec = json.NewDecoder(bufio.NewReader(stdout))
	var rep workerReply
	if err := O.dec.Decode(&rep); err != nil {
		O.stop()
		return newError(ErrModelNotFound, MatterSim, O.model, "worker exited before loading the model: "+err.Error(), "Start")
	}
	if !rep.OK {
		O.stop()
		return newError(ErrModelNotFound, MatterSim, O.model, rep.Error, "Start")
	}
	O.device = rep.Device
	O.log.Info("MatterSim worker ready", logging.String("model", O.model), logging.String("device", rep.Device), logging.Int("atoms", len(O.numbers)))
	return nil
}

//Calculate sends the coordinates to the worker and waits for the answer.
func (O *MatterSimHandle) Calculate(ctx context.Context, coords *v3.Matrix) (*Result, error) {
	O.mu.Lock()
	defer O.mu.Unlock()
	if O.cmd == nil {
		return nil, newError(ErrNotStarted, MatterSim, O.model, "", "Calculate")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if coords.NVecs() != len(O.numbers) {
		return nil, newError(ErrCantInput, MatterSim, O.model, fmt.Sprintf("%d coordinates for %d atoms", coords.NVecs(), len(O.numbers)), "Calculate")
	}
	req := workerRequest{
		ID:        uuid.NewString(),
		Numbers:   O.numbers,
		Positions: coords.Rows(),
		Cell:      O.cell,
		PBC:       O.cell != nil,
	}
	line, err := json.Marshal(&req)
	if err != nil {
		//NaN or infinite coordinates end up here.
		return nil, newError(ErrCantInput, MatterSim, O.model, err.Error(), "Calculate")
	}
	if _, err := O.stdin.Write(append(line, '\n')); err != nil {
		return nil, newError(ErrNotRunning, MatterSim, O.model, err.Error(), "Calculate")
	}
	var rep workerReply
	if err := O.dec.Decode(&rep); err != nil {
		return nil, newError(ErrNotRunning, MatterSim, O.model, "worker died: "+err.Error(), "Calculate")
	}
	if rep.Error != "" {
		return nil, newError(ErrNoEnergy, MatterSim, O.model, rep.Error, "Calculate")
	}
	if rep.ID != req.ID {
		return nil, newError(ErrProtocol, MatterSim, O.model, fmt.Sprintf("answer %q to request %q", rep.ID, req.ID), "Calculate")
	}
	return resultFromReply(rep.Energy, rep.Forces, len(O.numbers), MatterSim, "Calculate")
}

//Close stops the worker. The worker exits when its standard input is closed.
func (O *MatterSimHandle) Close() error {
	O.mu.Lock()
	defer O.mu.Unlock()
	return O.stop()
}

func (O *MatterSimHandle) stop() error {
	if O.cmd == nil {
		return nil
	}
	O.stdin.Close()
	err := O.cmd.Wait()
	O.cmd = nil
	if err != nil {
		O.log.Debug("worker exited", logging.Err(err))
	}
	return nil
}

//resultFromReply checks the energy and forces given by a backend and puts them in a Result.
func resultFromReply(energy *float64, forces [][]float64, natoms int, code, caller string) (*Result, error) {
	if energy == nil {
		return nil, newError(ErrNoEnergy, code, "", "", caller)
	}
	if len(forces) != natoms {
		return nil, newError(ErrNoForces, code, "", fmt.Sprintf("%d forces for %d atoms", len(forces), natoms), caller)
	}
	f, err := v3.FromRows(forces)
	if err != nil {
		return nil, newError(ErrNoForces, code, "", err.Error(), caller)
	}
	return &Result{Energy: *energy, Forces: f}, nil
}

//lastLine returns the last non-empty line in out.
func lastLine(out []byte) []byte {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return []byte(lines[len(lines)-1])
}

//logWriter sends whatever is written to it, line by line, to a Logger at
//debug level. It keeps the chatter of external programs off our stdout.
type logWriter struct {
	log  logging.Logger
	part []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.part = append(w.part, p...)
	for {
		i := bytes.IndexByte(w.part, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.part[:i]); len(line) > 0 {
			w.log.Debug(string(line))
		}
		w.part = w.part[i+1:]
	}
	return len(p), nil
}
