/*
 * defaults.go, part of avoforce.
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

package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Default values.
const (
	DefaultBackend      = BackendMatterSim
	DefaultPython       = "python3"
	DefaultModel        = "MatterSim-v1.0.0-5M.pth"
	DefaultDevice       = DeviceAuto
	DefaultProbeTimeout = 60 * time.Second
	DefaultXTBCommand   = "xtb"
	DefaultXTBMethod    = "gfn2"
	DefaultRemoteTime   = 5 * time.Minute
	DefaultLogLevel     = "error"
	DefaultLogFormat    = "console"
	DefaultLogOutput    = "stderr"
)

// setDefaults registers every key with viper. Keys need to be known to viper
// for AVOFORCE_* environment variables to reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("mattersim.python", DefaultPython)
	v.SetDefault("mattersim.model", DefaultModel)
	v.SetDefault("mattersim.device", DefaultDevice)
	v.SetDefault("mattersim.probe_timeout", DefaultProbeTimeout)
	v.SetDefault("xtb.command", DefaultXTBCommand)
	v.SetDefault("xtb.method", DefaultXTBMethod)
	v.SetDefault("xtb.cpus", 0)
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.timeout", DefaultRemoteTime)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("log.output", DefaultLogOutput)
	v.SetDefault("trajectory", "")
}

// ApplyDefaults fills the zero-valued fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if cfg.MatterSim.Python == "" {
		cfg.MatterSim.Python = DefaultPython
	}
	if cfg.MatterSim.Model == "" {
		cfg.MatterSim.Model = DefaultModel
	}
	if cfg.MatterSim.Device == "" {
		cfg.MatterSim.Device = DefaultDevice
	}
	if cfg.MatterSim.ProbeTimeout <= 0 {
		cfg.MatterSim.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.XTB.Command == "" {
		cfg.XTB.Command = DefaultXTBCommand
	}
	if cfg.XTB.Method == "" {
		cfg.XTB.Method = DefaultXTBMethod
	}
	if cfg.XTB.CPUs <= 0 {
		cfg.XTB.CPUs = max(1, runtime.NumCPU()/2)
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = DefaultRemoteTime
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}
}
