/*
 * remote.go, part of avoforce.
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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chem "github.com/rmera/avoforce"
	"github.com/rmera/avoforce/internal/logging"
	v3 "github.com/rmera/avoforce/v3"
)

//remoteRequest is the body of a POST to /v1/calculate.
type remoteRequest struct {
	Numbers      []int       `json:"numbers"`
	Positions    [][]float64 `json:"positions"`
	Cell         [][]float64 `json:"cell,omitempty"`
	PBC          bool        `json:"pbc"`
	Charge       int         `json:"charge"`
	Multiplicity int         `json:"multiplicity"`
}

//remoteReply is the answer to /v1/calculate, energy in eV, forces in eV/A.
type remoteReply struct {
	Energy *float64    `json:"energy"`
	Forces [][]float64 `json:"forces"`
	Error  string      `json:"error"`
}

//remoteHealth is the answer to /healthz.
type remoteHealth struct {
	Status string `json:"status"`
	CUDA   bool   `json:"cuda"`
}

//RemoteHandle gets energies and forces from an inference server over HTTP.
type RemoteHandle struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     logging.Logger

	mu   sync.Mutex
	mol  *chem.Molecule
	cell [][]float64
}

//NewRemoteHandle returns a handle for the server at url.
func NewRemoteHandle(url string) *RemoteHandle {
	run := new(RemoteHandle)
	run.SetDefaults()
	run.url = strings.TrimRight(url, "/")
	return run
}

func (O *RemoteHandle) SetDefaults() {
	O.timeout = 5 * time.Minute
	O.client = &http.Client{}
	O.log = logging.NewNopLogger()
}

//SetTimeout sets the maximum time for each calculation.
func (O *RemoteHandle) SetTimeout(t time.Duration) { O.timeout = t }

func (O *RemoteHandle) SetLogger(log logging.Logger) { O.log = log }

func (O *RemoteHandle) Describe() Description {
	return Description{
		Name:        "MatterSim-5M (remote)",
		Identifier:  "MatterSim-5M-remote",
		Text:        "Calculate MatterSim energies and gradients with 5M model on " + O.url,
		Elements:    chem.ElementRange{First: 1, Last: 89},
		UnitCell:    true,
		Ion:         true,
		Radical:     true,
		Unavailable: "MatterSim server is unavailable",
	}
}

//Probe asks the server whether it is healthy.
func (O *RemoteHandle) Probe(ctx context.Context) Capability {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, O.url+"/healthz", nil)
	if err != nil {
		return Capability{Reason: err.Error()}
	}
	resp, err := O.client.Do(req)
	if err != nil {
		return Capability{Reason: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Capability{Reason: "server answered " + resp.Status}
	}
	var h remoteHealth
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		//A bare 200 is healthy enough.
		return Capability{Available: true}
	}
	return Capability{Available: true, Accelerator: h.CUDA}
}

//Start only stores the system, the server is stateless.
func (O *RemoteHandle) Start(ctx context.Context, mol *chem.Molecule) error {
	O.mu.Lock()
	defer O.mu.Unlock()
	if err := checkElements(O.Describe(), mol, Remote, O.url); err != nil {
		return err
	}
	O.mol = mol
	O.cell = nil
	if mol.Periodic() {
		O.cell = mol.Cell.Vectors.Rows()
	}
	return nil
}

//Calculate posts coords to the server and waits for the energy and forces.
func (O *RemoteHandle) Calculate(ctx context.Context, coords *v3.Matrix) (*Result, error) {
	const funcname = "Calculate"
	O.mu.Lock()
	defer O.mu.Unlock()
	if O.mol == nil {
		return nil, newError(ErrNotStarted, Remote, O.url, "", funcname)
	}
	if coords.NVecs() != O.mol.Len() {
		return nil, newError(ErrCantInput, Remote, O.url, fmt.Sprintf("%d coordinates for %d atoms", coords.NVecs(), O.mol.Len()), funcname)
	}
	body, err := json.Marshal(&remoteRequest{
		Numbers:      O.mol.Numbers(),
		Positions:    coords.Rows(),
		Cell:         O.cell,
		PBC:          O.cell != nil,
		Charge:       O.mol.Charge(),
		Multiplicity: O.mol.Multi(),
	})
	if err != nil {
		return nil, newError(ErrCantInput, Remote, O.url, err.Error(), funcname)
	}
	ctx, cancel := context.WithTimeout(ctx, O.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, O.url+"/v1/calculate", bytes.NewReader(body))
	if err != nil {
		return nil, newError(ErrCantInput, Remote, O.url, err.Error(), funcname)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", id)
	start := time.Now()
	resp, err := O.client.Do(req)
	if err != nil {
		return nil, newError(ErrNotRunning, Remote, O.url, err.Error(), funcname)
	}
	defer resp.Body.Close()
	O.log.Debug("calculation done", logging.String("request_id", id), logging.Duration("elapsed", time.Since(start)), logging.Int("status", resp.StatusCode))
	var rep remoteReply
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if json.Unmarshal(msg, &rep) == nil && rep.Error != "" {
			return nil, newError(ErrNoEnergy, Remote, O.url, fmt.Sprintf("%s: %s", resp.Status, rep.Error), funcname)
		}
		return nil, newError(ErrNoEnergy, Remote, O.url, fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(msg))), funcname)
	}
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, newError(ErrProtocol, Remote, O.url, err.Error(), funcname)
	}
	if rep.Error != "" {
		return nil, newError(ErrNoEnergy, Remote, O.url, rep.Error, funcname)
	}
	return resultFromReply(rep.Energy, rep.Forces, O.mol.Len(), Remote, funcname)
}

//Close releases idle connections.
func (O *RemoteHandle) Close() error {
	O.mu.Lock()
	defer O.mu.Unlock()
	O.client.CloseIdleConnections()
	O.mol = nil
	return nil
}
