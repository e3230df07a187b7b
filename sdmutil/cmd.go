/*
Copyright © 2019 the InMAP authors.
This file is part of SDM.

SDM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SDM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SDM.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package sdmutil holds the command-line interface and configuration
// handling for the superdroplet engine.
package sdmutil

import (
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/sdm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	d := sdm.DefaultOpts()
	model := func() []*pflag.FlagSet { return []*pflag.FlagSet{Root.PersistentFlags()} }

	// Options are the configuration options available to the engine.
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   model(),
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the logging verbosity: one of panic, fatal,
              error, warn, info, debug or trace.`,
			defaultVal: "info",
			flagsets:   model(),
		},
		{
			name: "Grid.Nx",
			usage: `
              Grid.Nx is the number of grid cells in the x direction.`,
			defaultVal: 1,
			flagsets:   model(),
		},
		{
			name: "Grid.Ny",
			usage: `
              Grid.Ny is the number of grid cells in the y direction.`,
			defaultVal: 1,
			flagsets:   model(),
		},
		{
			name: "Grid.Nz",
			usage: `
              Grid.Nz is the number of grid cells in the vertical direction.`,
			defaultVal: 20,
			flagsets:   model(),
		},
		{
			name: "Grid.Dx",
			usage: `
              Grid.Dx is the grid cell length in the x direction [m].`,
			defaultVal: 100.0,
			flagsets:   model(),
		},
		{
			name: "Grid.Dy",
			usage: `
              Grid.Dy is the grid cell length in the y direction [m].`,
			defaultVal: 100.0,
			flagsets:   model(),
		},
		{
			name: "Grid.Dz",
			usage: `
              Grid.Dz is the grid cell height [m].`,
			defaultVal: 50.0,
			flagsets:   model(),
		},
		{
			name: "Dt",
			usage: `
              Dt is the time step length [s].`,
			defaultVal: 1.0,
			flagsets:   model(),
		},
		{
			name: "SdConc",
			usage: `
              SdConc is the number of superdroplets initialized in each
              grid cell for each aerosol distribution.`,
			defaultVal: d.SdConc,
			flagsets:   model(),
		},
		{
			name: "NMax",
			usage: `
              NMax is the maximum number of superdroplets. Zero chooses
              a capacity from the grid size and SdConc.`,
			defaultVal: 0,
			flagsets:   model(),
		},
		{
			name: "RdMin",
			usage: `
              RdMin is the smallest dry radius [m] sampled at
              initialization.`,
			defaultVal: d.RdMin,
			flagsets:   model(),
		},
		{
			name: "RdMax",
			usage: `
              RdMax is the largest dry radius [m] sampled at
              initialization.`,
			defaultVal: d.RdMax,
			flagsets:   model(),
		},
		{
			name: "RHMaxInit",
			usage: `
              RHMaxInit caps the relative humidity used to find the
              initial equilibrium wet radii.`,
			defaultVal: d.RHMaxInit,
			flagsets:   model(),
		},
		{
			name: "Processes",
			usage: `
              Processes lists the processes to enable, from cond, sedi,
              coal, chem and src.`,
			defaultVal: []string{"cond", "sedi", "coal"},
			flagsets:   model(),
		},
		{
			name: "SstpCond",
			usage: `
              SstpCond is the number of condensation sub-steps per step.`,
			defaultVal: d.SstpCond,
			flagsets:   model(),
		},
		{
			name: "SstpCoal",
			usage: `
              SstpCoal is the number of coalescence sub-steps per step.`,
			defaultVal: d.SstpCoal,
			flagsets:   model(),
		},
		{
			name: "SstpChem",
			usage: `
              SstpChem is the number of chemistry sub-steps per step.`,
			defaultVal: d.SstpChem,
			flagsets:   model(),
		},
		{
			name: "Kernel",
			usage: `
              Kernel is the coalescence kernel: geometric or golovin.`,
			defaultVal: d.Kernel,
			flagsets:   model(),
		},
		{
			name: "Aerosol.Kappa",
			usage: `
              Aerosol.Kappa is the hygroscopicity parameter of the
              aerosol.`,
			defaultVal: 0.61,
			flagsets:   model(),
		},
		{
			name: "Aerosol.MeanRd",
			usage: `
              Aerosol.MeanRd lists the geometric mean dry radius [m] of
              each lognormal mode.`,
			defaultVal: []float64{0.04e-6, 0.15e-6},
			flagsets:   model(),
		},
		{
			name: "Aerosol.SdevRd",
			usage: `
              Aerosol.SdevRd lists the geometric standard deviation of
              each lognormal mode.`,
			defaultVal: []float64{1.4, 1.6},
			flagsets:   model(),
		},
		{
			name: "Aerosol.N",
			usage: `
              Aerosol.N lists the number concentration [m-3] of each
              lognormal mode.`,
			defaultVal: []float64{60e6, 40e6},
			flagsets:   model(),
		},
		{
			name: "Source.Interval",
			usage: `
              Source.Interval is the number of steps between aerosol
              source injections.`,
			defaultVal: 1,
			flagsets:   model(),
		},
		{
			name: "Source.SdConc",
			usage: `
              Source.SdConc is the number of superdroplets added to each
              source cell per injection.`,
			defaultVal: 8,
			flagsets:   model(),
		},
		{
			name: "Source.ZMax",
			usage: `
              Source.ZMax is the height [m] below which aerosol is
              injected.`,
			defaultVal: 100.0,
			flagsets:   model(),
		},
		{
			name: "Source.Scale",
			usage: `
              Source.Scale multiplies the aerosol number concentrations
              to give the concentration injected per source interval.`,
			defaultVal: 0.01,
			flagsets:   model(),
		},
		{
			name: "Chem.SO2",
			usage: `
              Chem.SO2 is the initial gas-phase SO2 mass mixing ratio
              [kg kg-1].`,
			defaultVal: 2.2e-9,
			flagsets:   model(),
		},
		{
			name: "Chem.H2O2",
			usage: `
              Chem.H2O2 is the initial gas-phase H2O2 mass mixing ratio
              [kg kg-1].`,
			defaultVal: 1.2e-9,
			flagsets:   model(),
		},
		{
			name: "DevCount",
			usage: `
              DevCount is the number of shards the domain is split into
              along x.`,
			defaultVal: d.DevCount,
			flagsets:   model(),
		},
		{
			name: "Backend",
			usage: `
              Backend is the compute backend: serial or threads.`,
			defaultVal: d.Backend,
			flagsets:   model(),
		},
		{
			name: "Seed",
			usage: `
              Seed seeds the random number generator.`,
			defaultVal: int(d.Seed),
			flagsets:   model(),
		},
		{
			name: "Box.Steps",
			usage: `
              Box.Steps is the number of steps to run.`,
			defaultVal: 60,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.T",
			usage: `
              Box.T is the air temperature [K].`,
			defaultVal: 283.0,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.RH",
			usage: `
              Box.RH is the initial relative humidity.`,
			defaultVal: 1.002,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
		{
			name: "Box.Rhod",
			usage: `
              Box.Rhod is the dry air density [kg m-3].`,
			defaultVal: 1.1,
			flagsets:   []*pflag.FlagSet{boxCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SDM")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case []float64:
				set.Float64SliceP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}

	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(configCmd)
	Root.AddCommand(boxCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sdmutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sdm",
	Short: "A superdroplet cloud microphysics engine.",
	Long: `sdm represents cloud droplets and aerosol with Lagrangian superdroplets
coupled to an Eulerian host model. Use the subcommands specified below to
access the engine functionality.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SDM_var' where 'var' is the
name of the variable to be set, with periods replaced by underscores.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of sdm.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sdm v%s\n", sdm.Version)
	},
	DisableAutoGenTag: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration",
	Long: `config prints the effective configuration, combining defaults, the
configuration file, environment variables and flags, in TOML format. The
output can be used as a configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return WriteConfig(cmd.OutOrStdout(), Cfg)
	},
	DisableAutoGenTag: true,
}

// boxCmd runs a horizontally uniform domain at rest.
var boxCmd = &cobra.Command{
	Use:   "box",
	Short: "Run a domain at rest",
	Long: `box initializes a horizontally uniform domain at rest with the
configured aerosol, temperature and humidity, runs the enabled processes
for Box.Steps steps and reports the accumulated precipitation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := Logger(Cfg)
		if err != nil {
			return err
		}
		log.SetOutput(cmd.ErrOrStderr())
		o, err := Opts(Cfg)
		if err != nil {
			return err
		}
		o.Log = log
		distros, err := Distros(Cfg)
		if err != nil {
			return err
		}
		b := BoxConfig{
			Steps: Cfg.GetInt("Box.Steps"),
			T:     Cfg.GetFloat64("Box.T"),
			RH:    Cfg.GetFloat64("Box.RH"),
			Rhod:  Cfg.GetFloat64("Box.Rhod"),
		}
		precip, err := b.Run(o, distros)
		if err != nil {
			return err
		}
		cmd.Printf("precipitation: %.4g\n", precip)
		return nil
	},
	DisableAutoGenTag: true,
}
