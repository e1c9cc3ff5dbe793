/*
 * root.go, part of avoforce.
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

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rmera/avoforce/avogadro"
	"github.com/rmera/avoforce/cjson"
	"github.com/rmera/avoforce/internal/config"
	"github.com/rmera/avoforce/internal/logging"
	"github.com/rmera/avoforce/qm"
	"github.com/rmera/avoforce/traj"
)

// Version is set at build time.
var Version = "dev"

// rootOptions holds the command line flags.
type rootOptions struct {
	ConfigPath  string
	Metadata    bool
	DisplayName bool
	File        string
	Lang        string
}

// newRootCommand creates the avoforce command. Results go to stdout,
// coordinates are read from stdin.
func newRootCommand(stdin io.Reader, stdout io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "avoforce",
		Short: "Energies and gradients for Avogadro from machine-learned and semiempirical force fields",
		Long: "avoforce is an Avogadro script energy plugin. By default it computes energies\n" +
			"and gradients with MatterSim; xtb and a remote inference server can be\n" +
			"selected in the configuration file or with AVOFORCE_* environment variables.",
		Version:       Version,
		Args:          cobra.ArbitraryArgs, // Avogadro may add arguments of its own, they are ignored.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd.Context(), opts, stdin, stdout)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.Metadata, "metadata", false, "print the plugin capabilities as JSON and exit")
	f.BoolVar(&opts.DisplayName, "display-name", false, "print the plugin name and exit")
	f.StringVarP(&opts.File, "file", "f", "", "molecule in CJSON format; reads coordinates from stdin and writes energies and gradients")
	f.StringVar(&opts.Lang, "lang", "en", "language for messages (accepted for compatibility, not used)")
	f.StringVar(&opts.ConfigPath, "config", "", "config file path (default: "+config.DefaultPath()+")")
	return cmd
}

func runRoot(ctx context.Context, opts *rootOptions, stdin io.Reader, stdout io.Writer) error {
	if !opts.Metadata && !opts.DisplayName && opts.File == "" {
		return nil
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	handle, err := qm.New(cfg, log)
	if err != nil {
		return err
	}
	md := avogadro.MetadataFrom(handle.Describe())
	switch {
	case opts.Metadata:
		c := handle.Probe(ctx)
		if !c.Available {
			log.Warn("backend unavailable", logging.String("backend", cfg.Backend), logging.String("reason", c.Reason))
		}
		return avogadro.WriteMetadata(stdout, md, c.Available)
	case opts.DisplayName:
		c := handle.Probe(ctx)
		name, err := avogadro.DisplayName(md, c.Available)
		if err != nil {
			log.Warn("backend unavailable", logging.String("backend", cfg.Backend), logging.String("reason", c.Reason))
			return err
		}
		_, err = fmt.Fprintln(stdout, name)
		return err
	}
	return runFile(ctx, opts.File, cfg, handle, log, stdin, stdout)
}

// runFile loads the molecule, starts the backend and answers Avogadro
// until it closes our stdin or terminates us.
func runFile(ctx context.Context, file string, cfg *config.Config, handle qm.Handle, log logging.Logger, stdin io.Reader, stdout io.Writer) error {
	mol, err := cjson.ReadFile(file)
	if err != nil {
		return err
	}
	log.Info("molecule loaded", logging.String("file", file), logging.Int("atoms", mol.Len()), logging.Bool("periodic", mol.Periodic()))
	if err := handle.Start(ctx, mol); err != nil {
		return err
	}
	defer handle.Close()
	session := avogadro.NewSession(mol, handle, stdin, stdout)
	session.SetLogger(log.Named("session"))
	if cfg.Trajectory != "" {
		w, err := traj.NewWriter(cfg.Trajectory, mol)
		if err != nil {
			return err
		}
		defer w.Close()
		session.SetRecorder(w)
	}
	errc := make(chan error, 1)
	go func() { errc <- session.Run(ctx) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		// A read from stdin can't be interrupted, so we don't wait for the session.
		// The handle and the trajectory writer lock around Calculate, WNext and
		// Close, so the deferred Close calls wait for a running step to finish.
		log.Info("terminated", logging.Err(ctx.Err()))
		return nil
	}
}
