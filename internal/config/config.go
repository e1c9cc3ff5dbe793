/*
 * config.go, part of avoforce.
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

// Package config provides configuration loading, defaults and validation
// for avoforce. Avogadro runs the plugin without arguments other than its
// own, so everything here can be set from a YAML file or from AVOFORCE_*
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/rmera/avoforce/internal/logging"
)

// Backends understood by the qm package.
const (
	BackendMatterSim = "mattersim"
	BackendXTB       = "xtb"
	BackendRemote    = "remote"
)

// Devices for the MatterSim worker. DeviceAuto picks CUDA when the worker
// reports it, and the CPU otherwise.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Config is the complete configuration of the plugin.
type Config struct {
	Backend   string          `mapstructure:"backend"`
	MatterSim MatterSimConfig `mapstructure:"mattersim"`
	XTB       XTBConfig       `mapstructure:"xtb"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Log       logging.Config  `mapstructure:"log"`
	// Trajectory, if not empty, is a file where every geometry computed is
	// recorded with its energy. A .gz or .zst extension compresses it.
	Trajectory string `mapstructure:"trajectory"`
}

// MatterSimConfig configures the Python worker that runs MatterSim.
type MatterSimConfig struct {
	// Python is the interpreter that has torch, ase and mattersim installed.
	Python string `mapstructure:"python"`
	// Model is either a checkpoint name known to mattersim or a path to a
	// checkpoint file.
	Model  string `mapstructure:"model"`
	Device string `mapstructure:"device"`
	// ProbeTimeout bounds the import check run for --metadata and --display-name.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// XTBConfig configures the xtb backend.
type XTBConfig struct {
	Command string `mapstructure:"command"`
	Method  string `mapstructure:"method"`
	CPUs    int    `mapstructure:"cpus"`
}

// RemoteConfig configures the HTTP inference backend.
type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate checks that the configuration makes sense.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMatterSim:
		switch c.MatterSim.Device {
		case DeviceAuto, DeviceCPU, DeviceCUDA:
		default:
			return fmt.Errorf("mattersim.device must be one of auto, cpu, cuda, got %q", c.MatterSim.Device)
		}
		if c.MatterSim.Python == "" || c.MatterSim.Model == "" {
			return fmt.Errorf("mattersim.python and mattersim.model are required")
		}
	case BackendXTB:
		if c.XTB.Command == "" {
			return fmt.Errorf("xtb.command is required")
		}
	case BackendRemote:
		if c.Remote.URL == "" {
			return fmt.Errorf("remote.url is required for the remote backend")
		}
		if c.Remote.Timeout <= 0 {
			return fmt.Errorf("remote.timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Log.Output == "stdout" || c.Log.Output == "/dev/stdout" {
		return logging.ErrStdout
	}
	return nil
}
