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

package sdmutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sdm"
	"github.com/spf13/cast"
)

// Opts returns engine options from a viper configuration.
func Opts(cfg *viper.Viper) (sdm.Opts, error) {
	o := sdm.DefaultOpts()
	o.Nx = cfg.GetInt("Grid.Nx")
	o.Ny = cfg.GetInt("Grid.Ny")
	o.Nz = cfg.GetInt("Grid.Nz")
	o.Dx = cfg.GetFloat64("Grid.Dx")
	o.Dy = cfg.GetFloat64("Grid.Dy")
	o.Dz = cfg.GetFloat64("Grid.Dz")
	o.Dt = cfg.GetFloat64("Dt")
	o.SdConc = cfg.GetInt("SdConc")
	o.NMax = cfg.GetInt("NMax")
	o.RdMin = cfg.GetFloat64("RdMin")
	o.RdMax = cfg.GetFloat64("RdMax")
	o.RHMaxInit = cfg.GetFloat64("RHMaxInit")
	o.SstpCond = cfg.GetInt("SstpCond")
	o.SstpCoal = cfg.GetInt("SstpCoal")
	o.SstpChem = cfg.GetInt("SstpChem")
	o.Kernel = os.ExpandEnv(cfg.GetString("Kernel"))
	o.ChemSO2 = cfg.GetFloat64("Chem.SO2")
	o.ChemH2O2 = cfg.GetFloat64("Chem.H2O2")
	o.DevCount = cfg.GetInt("DevCount")
	o.Backend = os.ExpandEnv(cfg.GetString("Backend"))
	seed := cfg.GetInt("Seed")
	if seed < 0 {
		return o, fmt.Errorf("sdmutil: Seed=%d but should be >= 0", seed)
	}
	o.Seed = uint64(seed)

	procs, err := cast.ToStringSliceE(cfg.Get("Processes"))
	if err != nil {
		return o, fmt.Errorf("sdmutil: reading Processes: %v", err)
	}
	o.Cond, o.Sedi, o.Coal, o.Chem, o.Src = false, false, false, false, false
	procs = strings.FieldsFunc(strings.Join(procs, ","), func(r rune) bool { return r == ',' || r == ' ' })
	for _, p := range procs {
		switch strings.ToLower(p) {
		case "cond":
			o.Cond = true
		case "sedi":
			o.Sedi = true
		case "coal":
			o.Coal = true
		case "chem":
			o.Chem = true
		case "src":
			o.Src = true
		default:
			return o, fmt.Errorf("sdmutil: unknown process %q in Processes", p)
		}
	}
	if o.Src {
		o.SrcInterval = cfg.GetInt("Source.Interval")
		o.SrcSdConc = cfg.GetInt("Source.SdConc")
		o.SrcZMax = cfg.GetFloat64("Source.ZMax")
		d, err := Distros(cfg)
		if err != nil {
			return o, err
		}
		scale := cfg.GetFloat64("Source.Scale")
		if !(scale > 0) {
			return o, fmt.Errorf("sdmutil: Source.Scale=%g but should be >0", scale)
		}
		for i := range d {
			modes := d[i].Spectrum.(sdm.LogNormal)
			for j := range modes {
				modes[j].N *= scale
			}
		}
		o.SrcDistros = d
	}
	if err := o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

// Distros returns the initial aerosol distribution from a viper
// configuration.
func Distros(cfg *viper.Viper) ([]sdm.DryDistro, error) {
	var cols [3][]float64
	for i, name := range []string{"Aerosol.MeanRd", "Aerosol.SdevRd", "Aerosol.N"} {
		v, err := toFloat64SliceE(cfg.Get(name))
		if err != nil {
			return nil, fmt.Errorf("sdmutil: reading %s: %v", name, err)
		}
		cols[i] = v
	}
	if len(cols[0]) == 0 || len(cols[1]) != len(cols[0]) || len(cols[2]) != len(cols[0]) {
		return nil, fmt.Errorf("sdmutil: Aerosol.MeanRd, Aerosol.SdevRd and Aerosol.N must have "+
			"the same nonzero length but have lengths %d, %d and %d", len(cols[0]), len(cols[1]), len(cols[2]))
	}
	modes := make(sdm.LogNormal, len(cols[0]))
	for i := range modes {
		modes[i] = sdm.LogNormalMode{MeanRd: cols[0][i], SdevRd: cols[1][i], N: cols[2][i]}
	}
	kappa := cfg.GetFloat64("Aerosol.Kappa")
	if !(kappa > 0) {
		return nil, fmt.Errorf("sdmutil: Aerosol.Kappa=%g but should be >0", kappa)
	}
	return []sdm.DryDistro{{Kappa: kappa, Spectrum: modes}}, nil
}

// Logger returns a logger with the configured verbosity.
func Logger(cfg *viper.Viper) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return nil, fmt.Errorf("sdmutil: %v", err)
	}
	l := logrus.New()
	l.SetLevel(lvl)
	return l, nil
}

// WriteConfig writes the current value of every option except the
// configuration file location to w in TOML format.
func WriteConfig(w io.Writer, cfg *viper.Viper) error {
	out := make(map[string]interface{})
	for _, option := range options {
		if option.name == "config" {
			continue
		}
		m := out
		parts := strings.Split(option.name, ".")
		for _, p := range parts[:len(parts)-1] {
			sub, ok := m[p].(map[string]interface{})
			if !ok {
				sub = make(map[string]interface{})
				m[p] = sub
			}
			m = sub
		}
		v, err := normalize(cfg.Get(option.name), option.defaultVal)
		if err != nil {
			return fmt.Errorf("sdmutil: %s: %v", option.name, err)
		}
		m[parts[len(parts)-1]] = v
	}
	return toml.NewEncoder(w).Encode(out)
}

// normalize converts v to the type of def.
func normalize(v, def interface{}) (interface{}, error) {
	switch def.(type) {
	case string:
		return cast.ToStringE(v)
	case []string:
		return cast.ToStringSliceE(v)
	case bool:
		return cast.ToBoolE(v)
	case int:
		return cast.ToIntE(v)
	case float64:
		return cast.ToFloat64E(v)
	case []float64:
		return toFloat64SliceE(v)
	default:
		return nil, fmt.Errorf("invalid type %T", def)
	}
}

// toFloat64SliceE converts a configuration value, which may come from a
// flag, a configuration file or the environment, to a slice of floats.
func toFloat64SliceE(s interface{}) ([]float64, error) {
	switch v := s.(type) {
	case []float64:
		return v, nil
	case []interface{}:
		o := make([]float64, len(v))
		for i, val := range v {
			f, err := cast.ToFloat64E(val)
			if err != nil {
				return nil, err
			}
			o[i] = f
		}
		return o, nil
	case string:
		var o []float64
		if !strings.HasPrefix(strings.TrimSpace(v), "[") {
			v = "[" + v + "]"
		}
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("unable to cast %#v of type %T to []float64", s, s)
}
