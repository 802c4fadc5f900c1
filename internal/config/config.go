// Package config reads the TOML measurement configuration. Each sketch
// lives under its own root table with `para`, `test`, `data` and, for
// CH-backed sketches, `ch` sub-tables. An optional `[output]` table
// configures report sinks.
package config

import (
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"SketchSpectra/internal/pkg/logger"
)

// ErrBadConfig reports a malformed configuration: missing required key,
// type mismatch, or an unparsable file.
var ErrBadConfig = errors.New("config: bad configuration")

// node is the raw shape of one sketch's table.
type node struct {
	Para toml.Primitive `toml:"para"`
	Test toml.Primitive `toml:"test"`
	Data toml.Primitive `toml:"data"`
	CH   toml.Primitive `toml:"ch"`
}

// DataConfig describes where the records live and how they are laid out.
type DataConfig struct {
	Path      string          `toml:"data"`
	Format    [][]interface{} `toml:"format"`
	CntMethod string          `toml:"cnt_method"`

	// Optional knobs shared by several sketch tests.
	Sample      float64 `toml:"sample"`
	HXMethod    string  `toml:"hx_method"`
	ThresholdHH float64 `toml:"threshold_heavy_hitter"`
	ThresholdHC float64 `toml:"threshold_heavy_changer"`
}

// CHConfig describes the counter hierarchy backing a sketch.
type CHConfig struct {
	CntNoRatio float64 `toml:"cnt_no_ratio"`
	WidthCnt   []int   `toml:"width_cnt"`
	NoHash     []int   `toml:"no_hash"`
}

// ClickHouseSink configures the ClickHouse report writer.
type ClickHouseSink struct {
	Addr     string `toml:"addr"`
	Database string `toml:"database"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Table    string `toml:"table"`
}

// OutputConfig configures where measurement reports go besides stdout.
type OutputConfig struct {
	Text       string         `toml:"text"`
	ClickHouse ClickHouseSink `toml:"clickhouse"`
	API        string         `toml:"api"`
}

// File is a parsed configuration file.
type File struct {
	md     toml.MetaData
	nodes  map[string]node
	output OutputConfig
}

// Load opens and parses a configuration file.
func Load(path string) (*File, error) {
	logger.Infof("Loading config from %s...", path)

	var raw map[string]toml.Primitive
	md, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, errors.Wrapf(ErrBadConfig, "parse %s: %v", path, err)
	}

	f := &File{md: md, nodes: make(map[string]node)}
	for name, prim := range raw {
		if name == "output" {
			if err := md.PrimitiveDecode(prim, &f.output); err != nil {
				return nil, errors.Wrapf(ErrBadConfig, "output: %v", err)
			}
			continue
		}
		var n node
		if err := md.PrimitiveDecode(prim, &n); err != nil {
			return nil, errors.Wrapf(ErrBadConfig, "%s: %v", name, err)
		}
		f.nodes[name] = n
	}
	logger.Verbosef("Config loaded.")
	return f, nil
}

// Sketches lists the configured sketch tables in name order.
func (f *File) Sketches() []string {
	names := make([]string, 0, len(f.nodes))
	for name := range f.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a sketch table is present.
func (f *File) Has(name string) bool {
	_, ok := f.nodes[name]
	return ok
}

// Output returns the sink configuration.
func (f *File) Output() OutputConfig { return f.output }

// DecodePara fills v from the sketch's `para` table.
func (f *File) DecodePara(name string, v interface{}) error {
	n, ok := f.nodes[name]
	if !ok {
		return errors.Wrapf(ErrBadConfig, "no table %q", name)
	}
	if err := f.md.PrimitiveDecode(n.Para, v); err != nil {
		return errors.Wrapf(ErrBadConfig, "%s.para: %v", name, err)
	}
	return nil
}

// DecodeData returns the sketch's `data` table.
func (f *File) DecodeData(name string) (DataConfig, error) {
	n, ok := f.nodes[name]
	if !ok {
		return DataConfig{}, errors.Wrapf(ErrBadConfig, "no table %q", name)
	}
	var d DataConfig
	if err := f.md.PrimitiveDecode(n.Data, &d); err != nil {
		return DataConfig{}, errors.Wrapf(ErrBadConfig, "%s.data: %v", name, err)
	}
	if d.Path == "" {
		return DataConfig{}, errors.Wrapf(ErrBadConfig, "%s.data: missing \"data\"", name)
	}
	if len(d.Format) == 0 {
		return DataConfig{}, errors.Wrapf(ErrBadConfig, "%s.data: missing \"format\"", name)
	}
	return d, nil
}

// DecodeCH returns the sketch's `ch` table.
func (f *File) DecodeCH(name string) (CHConfig, error) {
	n, ok := f.nodes[name]
	if !ok {
		return CHConfig{}, errors.Wrapf(ErrBadConfig, "no table %q", name)
	}
	var c CHConfig
	if err := f.md.PrimitiveDecode(n.CH, &c); err != nil {
		return CHConfig{}, errors.Wrapf(ErrBadConfig, "%s.ch: %v", name, err)
	}
	if c.CntNoRatio <= 0 || c.CntNoRatio >= 1 {
		return CHConfig{}, errors.Wrapf(ErrBadConfig, "%s.ch: cnt_no_ratio must be in (0,1), got %g", name, c.CntNoRatio)
	}
	return c, nil
}

// TestNode gives the measurement harness typed access to the terms of a
// sketch's `test` table.
type TestNode struct {
	name  string
	md    *toml.MetaData
	prims map[string]toml.Primitive
}

// DecodeTest returns the sketch's `test` table.
func (f *File) DecodeTest(name string) (*TestNode, error) {
	n, ok := f.nodes[name]
	if !ok {
		return nil, errors.Wrapf(ErrBadConfig, "no table %q", name)
	}
	prims := make(map[string]toml.Primitive)
	if err := f.md.PrimitiveDecode(n.Test, &prims); err != nil {
		return nil, errors.Wrapf(ErrBadConfig, "%s.test: %v", name, err)
	}
	return &TestNode{name: name, md: &f.md, prims: prims}, nil
}

// Has reports whether a term is present.
func (t *TestNode) Has(term string) bool {
	_, ok := t.prims[term]
	return ok
}

// StringList reads a term holding a list of strings.
func (t *TestNode) StringList(term string) ([]string, bool, error) {
	prim, ok := t.prims[term]
	if !ok {
		return nil, false, nil
	}
	var v []string
	if err := t.md.PrimitiveDecode(prim, &v); err != nil {
		return nil, true, errors.Wrapf(ErrBadConfig, "%s.test.%s: %v", t.name, term, err)
	}
	return v, true, nil
}

// Float reads a term holding a single number.
func (t *TestNode) Float(term string) (float64, bool, error) {
	prim, ok := t.prims[term]
	if !ok {
		return 0, false, nil
	}
	var v float64
	if err := t.md.PrimitiveDecode(prim, &v); err != nil {
		return 0, true, errors.Wrapf(ErrBadConfig, "%s.test.%s: %v", t.name, term, err)
	}
	return v, true, nil
}

// FloatList reads a term holding a list of numbers.
func (t *TestNode) FloatList(term string) ([]float64, bool, error) {
	prim, ok := t.prims[term]
	if !ok {
		return nil, false, nil
	}
	var v []float64
	if err := t.md.PrimitiveDecode(prim, &v); err != nil {
		return nil, true, errors.Wrapf(ErrBadConfig, "%s.test.%s: %v", t.name, term, err)
	}
	return v, true, nil
}
