package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

const sample = `
[CountMin]

    [CountMin.para]
    depth = 3
    width = 65536

    [CountMin.test]
    update = ["RATE"]
    query = ["ARE", "PODF"]
    query_podf = 0.1

    [CountMin.data]
    data = "records.bin"
    format = [["flowkey", "timestamp", "length"], [13, 8, 2]]
    cnt_method = "InPacket"
    sample = 0.3

    [CountMin.ch]
    cnt_no_ratio = 0.4
    width_cnt = [10, 10]
    no_hash = [2]

[output]
text = "reports"
api = ":8080"

    [output.clickhouse]
    addr = "localhost:9000"
    database = "default"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, []string{"CountMin"}, cfg.Sketches())
	require.True(t, cfg.Has("CountMin"))
	require.False(t, cfg.Has("BloomFilter"))

	var para struct {
		Depth int `toml:"depth"`
		Width int `toml:"width"`
	}
	require.NoError(t, cfg.DecodePara("CountMin", &para))
	require.Equal(t, 3, para.Depth)
	require.Equal(t, 65536, para.Width)

	d, err := cfg.DecodeData("CountMin")
	require.NoError(t, err)
	require.Equal(t, "records.bin", d.Path)
	require.Equal(t, "InPacket", d.CntMethod)
	require.Equal(t, 0.3, d.Sample)
	require.Len(t, d.Format, 2)
	require.Equal(t, "flowkey", d.Format[0][0])
	require.EqualValues(t, 13, d.Format[1][0])

	ch, err := cfg.DecodeCH("CountMin")
	require.NoError(t, err)
	require.Equal(t, 0.4, ch.CntNoRatio)
	require.Equal(t, []int{10, 10}, ch.WidthCnt)
	require.Equal(t, []int{2}, ch.NoHash)

	out := cfg.Output()
	require.Equal(t, "reports", out.Text)
	require.Equal(t, ":8080", out.API)
	require.Equal(t, "localhost:9000", out.ClickHouse.Addr)
}

func TestTestNode(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	node, err := cfg.DecodeTest("CountMin")
	require.NoError(t, err)
	require.True(t, node.Has("update"))
	require.False(t, node.Has("insert"))

	list, ok, err := node.StringList("query")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{"ARE", "PODF"}, list)

	podf, ok, err := node.Float("query_podf")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0.1, podf)

	_, ok, err = node.Float("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.True(t, errors.Is(err, ErrBadConfig))

	_, err = Load(writeConfig(t, "not [valid toml"))
	require.True(t, errors.Is(err, ErrBadConfig))

	cfg, err := Load(writeConfig(t, "[Sketch]\n[Sketch.data]\nformat = [[\"flowkey\"], [4]]\n"))
	require.NoError(t, err)
	_, err = cfg.DecodeData("Sketch") // data path missing
	require.True(t, errors.Is(err, ErrBadConfig))

	cfg, err = Load(writeConfig(t, "[Sketch]\n[Sketch.ch]\ncnt_no_ratio = 1.5\nwidth_cnt = [4]\nno_hash = []\n"))
	require.NoError(t, err)
	_, err = cfg.DecodeCH("Sketch")
	require.True(t, errors.Is(err, ErrBadConfig))

	_, err = cfg.DecodeData("NoSuchSketch")
	require.True(t, errors.Is(err, ErrBadConfig))
}
