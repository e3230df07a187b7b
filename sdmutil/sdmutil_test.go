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
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/unit"
	"github.com/kr/pretty"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sdm"
)

// testConfig returns a configuration holding the default value of every
// option.
func testConfig() *viper.Viper {
	v := viper.New()
	for _, option := range options {
		v.Set(option.name, option.defaultVal)
	}
	return v
}

func TestOpts(t *testing.T) {
	cfg := testConfig()
	o, err := Opts(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if o.Nz != 20 || o.Dz != 50 {
		t.Errorf("grid: %d cells of %g m", o.Nz, o.Dz)
	}
	if !o.Cond || !o.Sedi || !o.Coal || o.Chem || o.Src {
		t.Errorf("processes: %+v", o)
	}

	cfg.Set("Processes", "cond, src")
	o, err = Opts(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !o.Cond || o.Coal || !o.Src {
		t.Errorf("processes from a string: %+v", o)
	}
	if len(o.SrcDistros) != 1 {
		t.Fatalf("source distributions: %v", o.SrcDistros)
	}
	modes := o.SrcDistros[0].Spectrum.(sdm.LogNormal)
	if different(modes[0].N, 60e6*0.01, 1e-12) {
		t.Errorf("source mode concentration %g", modes[0].N)
	}

	cfg.Set("Processes", []string{"cond", "evap"})
	if _, err := Opts(cfg); err == nil {
		t.Error("accepted an unknown process")
	}
	cfg.Set("Processes", []string{"cond"})
	cfg.Set("Grid.Nz", 0)
	if _, err := Opts(cfg); err == nil {
		t.Error("accepted an empty grid")
	}
}

func TestDistros(t *testing.T) {
	cfg := testConfig()
	d, err := Distros(cfg)
	if err != nil {
		t.Fatal(err)
	}
	modes := d[0].Spectrum.(sdm.LogNormal)
	want := sdm.LogNormal{
		{MeanRd: 0.04e-6, SdevRd: 1.4, N: 60e6},
		{MeanRd: 0.15e-6, SdevRd: 1.6, N: 40e6},
	}
	if diff := pretty.Diff(modes, want); len(diff) != 0 {
		t.Errorf("modes: %v", diff)
	}
	if different(modes.Total(), 100e6, 1e-12) {
		t.Errorf("total concentration %g", modes.Total())
	}

	cfg.Set("Aerosol.MeanRd", "[1e-7]")
	if _, err := Distros(cfg); err == nil {
		t.Error("accepted modes of different lengths")
	}
}

func TestToFloat64Slice(t *testing.T) {
	for _, in := range []interface{}{
		[]float64{1, 2.5},
		[]interface{}{int64(1), 2.5},
		"[1,2.5]",
		"1, 2.5",
	} {
		v, err := toFloat64SliceE(in)
		if err != nil {
			t.Errorf("%#v: %v", in, err)
			continue
		}
		if len(v) != 2 || v[0] != 1 || v[1] != 2.5 {
			t.Errorf("%#v: %v", in, v)
		}
	}
	if _, err := toFloat64SliceE(3); err == nil {
		t.Error("converted a scalar")
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Set("Grid.Nz", 7)
	var b bytes.Buffer
	if err := WriteConfig(&b, cfg); err != nil {
		t.Fatal(err)
	}
	var out struct {
		LogLevel string
		Grid     struct{ Nz int }
		Aerosol  struct{ MeanRd []float64 }
	}
	if _, err := toml.Decode(b.String(), &out); err != nil {
		t.Fatalf("%v\n%s", err, b.String())
	}
	if out.Grid.Nz != 7 || len(out.Aerosol.MeanRd) != 2 || out.LogLevel != "info" {
		t.Errorf("round trip: %+v", out)
	}
	if strings.Contains(b.String(), "config") {
		t.Error("configuration file location was written")
	}
}

func TestLogger(t *testing.T) {
	cfg := testConfig()
	cfg.Set("LogLevel", "debug")
	l, err := Logger(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if l.Level != logrus.DebugLevel {
		t.Errorf("level %v", l.Level)
	}
	cfg.Set("LogLevel", "loud")
	if _, err := Logger(cfg); err == nil {
		t.Error("accepted an invalid level")
	}
}

func TestBox(t *testing.T) {
	o := sdm.DefaultOpts()
	o.Nz, o.Dz = 4, 50
	o.Dx, o.Dy = 100, 100
	o.SdConc = 8
	o.RdMin, o.RdMax = 1e-8, 1e-6
	o.Sedi, o.Coal = true, true
	o.Backend = "serial"
	l := logrus.New()
	l.SetOutput(io.Discard)
	o.Log = l
	d, err := Distros(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	b := BoxConfig{Steps: 3, T: 283, RH: 1.002, Rhod: 1.1}
	precip, err := b.Run(o, d)
	if err != nil {
		t.Fatal(err)
	}
	if err := precip.Check(unit.Meter); err != nil {
		t.Error(err)
	}
	if precip.Value() < 0 {
		t.Errorf("negative precipitation %v", precip)
	}

	b.RH = 0
	if _, err := b.Run(o, d); err == nil {
		t.Error("accepted zero humidity")
	}
}

func TestCommands(t *testing.T) {
	for _, c := range []struct {
		args []string
		want string
	}{
		{args: []string{"version"}, want: "sdm v" + sdm.Version},
		{args: []string{"config"}, want: "[Grid]"},
		{args: []string{"box", "--Box.Steps=1", "--Grid.Nz=3", "--SdConc=4", "--LogLevel=error"}, want: "precipitation:"},
	} {
		var b bytes.Buffer
		Root.SetOut(&b)
		Root.SetErr(&b)
		Root.SetArgs(c.args)
		if err := Root.Execute(); err != nil {
			t.Fatalf("%v: %v", c.args, err)
		}
		if !strings.Contains(b.String(), c.want) {
			t.Errorf("%v: output %q does not contain %q", c.args, b.String(), c.want)
		}
	}
}

func different(a, b, tol float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tol || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}
