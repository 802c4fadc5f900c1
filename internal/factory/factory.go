// Package factory builds sketches from their configuration nodes and runs
// the tests each node declares.
package factory

import (
	"math"

	"github.com/pkg/errors"

	"SketchSpectra/internal/config"
	"SketchSpectra/internal/data"
	"SketchSpectra/internal/measure"
	"SketchSpectra/internal/pkg/logger"
	"SketchSpectra/internal/sketch"
	"SketchSpectra/internal/trace"
)

// Known lists the sketch table names the factory understands, in run order.
func Known() []string {
	return []string{
		"BloomFilter",
		"CountingBloomFilter",
		"CountMin",
		"CHCountMin",
		"CountSketch",
		"HashPipe",
		"FlowRadar",
	}
}

// Run builds the named sketch from its config node and drives every test
// its `test` table declares. It returns the measurement report.
func Run(cfg *config.File, name string) (*measure.Report, error) {
	switch name {
	case "BloomFilter":
		return runMembership(cfg, name, "Bloom Filter", func(keyLen int) (sketch.Sketch, error) {
			var para struct {
				NumBits int `toml:"num_bits"`
				NumHash int `toml:"num_hash"`
			}
			if err := cfg.DecodePara(name, &para); err != nil {
				return nil, err
			}
			return sketch.NewBloomFilter(para.NumBits, para.NumHash)
		})
	case "CountingBloomFilter":
		return runMembership(cfg, name, "Counting Bloom Filter", func(keyLen int) (sketch.Sketch, error) {
			var para struct {
				NumCnt    int `toml:"num_cnt"`
				NumHash   int `toml:"num_hash"`
				CntLength int `toml:"cnt_length"`
			}
			if err := cfg.DecodePara(name, &para); err != nil {
				return nil, err
			}
			return sketch.NewCountingBloomFilter(para.NumCnt, para.NumHash, para.CntLength)
		})
	case "CountMin":
		return runVolume(cfg, name, "Count Min", func(keyLen int) (sketch.Sketch, error) {
			depth, width, err := depthWidth(cfg, name)
			if err != nil {
				return nil, err
			}
			return sketch.NewCMSketch(depth, width)
		})
	case "CHCountMin":
		return runVolume(cfg, name, "Count Min with CH", func(keyLen int) (sketch.Sketch, error) {
			depth, width, err := depthWidth(cfg, name)
			if err != nil {
				return nil, err
			}
			ch, err := cfg.DecodeCH(name)
			if err != nil {
				return nil, err
			}
			return sketch.NewCHCMSketch(depth, width, ch.CntNoRatio, ch.WidthCnt, ch.NoHash)
		})
	case "CountSketch":
		return runVolume(cfg, name, "Count Sketch", func(keyLen int) (sketch.Sketch, error) {
			depth, width, err := depthWidth(cfg, name)
			if err != nil {
				return nil, err
			}
			return sketch.NewCountSketch(depth, width)
		})
	case "HashPipe":
		return runVolume(cfg, name, "Hash Pipe", func(keyLen int) (sketch.Sketch, error) {
			depth, width, err := depthWidth(cfg, name)
			if err != nil {
				return nil, err
			}
			return sketch.NewHashPipe(keyLen, depth, width)
		})
	case "FlowRadar":
		return runVolume(cfg, name, "Flow Radar", func(keyLen int) (sketch.Sketch, error) {
			var para struct {
				FlowFilterSize int `toml:"flow_filter_size"`
				FlowFilterHash int `toml:"flow_filter_hash"`
				CountTableSize int `toml:"count_table_size"`
				CountTableHash int `toml:"count_table_hash"`
			}
			if err := cfg.DecodePara(name, &para); err != nil {
				return nil, err
			}
			return sketch.NewFlowRadar(keyLen, para.FlowFilterSize, para.FlowFilterHash,
				para.CountTableSize, para.CountTableHash)
		})
	}
	return nil, errors.Wrapf(config.ErrBadConfig, "unknown sketch %q", name)
}

func depthWidth(cfg *config.File, name string) (int, int, error) {
	var para struct {
		Depth int `toml:"depth"`
		Width int `toml:"width"`
	}
	if err := cfg.DecodePara(name, &para); err != nil {
		return 0, 0, err
	}
	return para.Depth, para.Width, nil
}

// loaded bundles everything a runner needs from the data node.
type loaded struct {
	stream *trace.StreamData
	dcfg   config.DataConfig
	method trace.CntMethod
	keyLen int
}

func loadData(cfg *config.File, name string) (*loaded, error) {
	dcfg, err := cfg.DecodeData(name)
	if err != nil {
		return nil, err
	}
	format, err := trace.NewDataFormat(dcfg.Format)
	if err != nil {
		return nil, err
	}
	stream, err := trace.Load(dcfg.Path, format)
	if err != nil {
		return nil, err
	}
	return &loaded{
		stream: stream,
		dcfg:   dcfg,
		method: trace.ParseCntMethod(dcfg.CntMethod),
		keyLen: format.KeyLen(),
	}, nil
}

// runMembership drives insert/lookup/size sketches: a sample prefix of the
// stream is inserted and the full flow set is probed.
func runMembership(cfg *config.File, name, showName string,
	build func(keyLen int) (sketch.Sketch, error)) (*measure.Report, error) {
	tests, err := cfg.DecodeTest(name)
	if err != nil {
		return nil, err
	}
	ld, err := loadData(cfg, name)
	if err != nil {
		return nil, err
	}
	s, err := build(ld.keyLen)
	if err != nil {
		return nil, err
	}

	sample := ld.dcfg.Sample
	if sample == 0 {
		sample = 1
	}
	if sample <= 0 || sample > 1 {
		return nil, errors.Wrapf(config.ErrBadConfig, "%s.data: sample should be in (0, 1], got %g", name, sample)
	}
	cut := int(sample * float64(ld.stream.Size()))
	sampled, err := ld.stream.Slice(0, cut)
	if err != nil {
		return nil, err
	}

	truth := data.NewGndTruth()
	truth.BuildFromRecords(ld.stream.Records(), ld.method)
	sampleTruth := data.NewGndTruth()
	sampleTruth.BuildFromRecords(sampled, ld.method)
	logger.Infof("DataSet: %d records with %d keys (%s)", ld.stream.Size(), truth.Size(), ld.dcfg.Path)

	bench := measure.NewBench(showName, tests)
	if tests.Has("insert") {
		if err := bench.TestInsert(s, sampled); err != nil {
			return nil, err
		}
	}
	if tests.Has("lookup") {
		if err := bench.TestLookup(s, truth, sampleTruth); err != nil {
			return nil, err
		}
	}
	if tests.Has("size") {
		if err := bench.TestSize(s); err != nil {
			return nil, err
		}
	}
	return bench.Report(), nil
}

// runVolume drives update/query sketches, plus heavy hitters, heavy
// changers and decode where declared.
func runVolume(cfg *config.File, name, showName string,
	build func(keyLen int) (sketch.Sketch, error)) (*measure.Report, error) {
	tests, err := cfg.DecodeTest(name)
	if err != nil {
		return nil, err
	}
	ld, err := loadData(cfg, name)
	if err != nil {
		return nil, err
	}
	s, err := build(ld.keyLen)
	if err != nil {
		return nil, err
	}

	truth := data.NewGndTruth()
	truth.BuildFromRecords(ld.stream.Records(), ld.method)
	logger.Infof("DataSet: %d records with %d keys (%s)", ld.stream.Size(), truth.Size(), ld.dcfg.Path)

	bench := measure.NewBench(showName, tests)
	if tests.Has("update") {
		if err := bench.TestUpdate(s, ld.stream.Records(), ld.method); err != nil {
			return nil, err
		}
	}
	if tests.Has("query") {
		if err := bench.TestQuery(s, truth); err != nil {
			return nil, err
		}
	}
	if tests.Has("heavyhitter") {
		hx := data.ParseHXMethod(ld.dcfg.HXMethod)
		truthHH := data.NewGndTruth()
		if err := truthHH.HeavyHitter(truth, ld.dcfg.ThresholdHH, hx); err != nil {
			return nil, err
		}
		if truthHH.Empty() {
			logger.Warningf("No heavy hitter in the ground truth, skipping the test.")
		} else {
			// The ground truth keeps flows strictly above the percentile
			// cut, while sketches compare with >=; shift the absolute
			// threshold accordingly.
			var threshold float64
			if hx == data.TopK {
				threshold = float64(truthHH.Min())
			} else {
				threshold = math.Floor(float64(truth.TotalValue())*ld.dcfg.ThresholdHH + 1)
			}
			if err := bench.TestHeavyHitter(s, threshold, truthHH); err != nil {
				return nil, err
			}
		}
	}
	if tests.Has("heavychanger") {
		if err := runHeavyChanger(cfg, name, bench, ld, build); err != nil {
			return nil, err
		}
	}
	if tests.Has("decode") {
		if err := bench.TestDecode(s, truth); err != nil {
			return nil, err
		}
	}
	if tests.Has("size") {
		if err := bench.TestSize(s); err != nil {
			return nil, err
		}
	}
	return bench.Report(), nil
}

// runHeavyChanger updates two fresh sketch instances with the two halves
// of the stream and compares them.
func runHeavyChanger(cfg *config.File, name string, bench *measure.Bench, ld *loaded,
	build func(keyLen int) (sketch.Sketch, error)) error {
	half := ld.stream.Size() / 2
	recs1, err := ld.stream.Slice(0, half)
	if err != nil {
		return err
	}
	recs2, err := ld.stream.Slice(half, ld.stream.Size())
	if err != nil {
		return err
	}

	s1, err := build(ld.keyLen)
	if err != nil {
		return err
	}
	s2, err := build(ld.keyLen)
	if err != nil {
		return err
	}
	for i := range recs1 {
		s1.Update(recs1[i].Key, recs1[i].Count(ld.method))
	}
	for i := range recs2 {
		s2.Update(recs2[i].Key, recs2[i].Count(ld.method))
	}

	t1, t2 := data.NewGndTruth(), data.NewGndTruth()
	t1.BuildFromRecords(recs1, ld.method)
	t2.BuildFromRecords(recs2, ld.method)

	hx := data.ParseHXMethod(ld.dcfg.HXMethod)
	diff := data.NewGndTruth()
	if err := diff.HeavyChanger(t1, t2, 0, data.Percentile); err != nil {
		return err
	}
	truthHC := data.NewGndTruth()
	if err := truthHC.HeavyHitter(diff, ld.dcfg.ThresholdHC, hx); err != nil {
		return err
	}
	if truthHC.Empty() {
		logger.Warningf("No heavy changer in the ground truth, skipping the test.")
		return nil
	}
	var threshold float64
	if hx == data.TopK {
		threshold = float64(truthHC.Min())
	} else {
		threshold = math.Floor(float64(diff.TotalValue())*ld.dcfg.ThresholdHC + 1)
	}
	return bench.TestHeavyChanger(s1, s2, threshold, truthHC)
}
