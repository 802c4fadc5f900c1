package measure

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
)

// opOrder fixes the display order of operation families.
var opOrder = []string{"size", "insert", "lookup", "update", "query", "heavyhitter", "heavychanger", "decode"}

var opLabel = map[string]string{
	"size":         "Size",
	"insert":       "Insert",
	"lookup":       "Lookup",
	"update":       "Update",
	"query":        "Query",
	"heavyhitter":  "HH",
	"heavychanger": "HC",
	"decode":       "Decode",
}

// metricOrder fixes the display order of metrics within one operation.
var metricOrder = []Metric{SIZE, RATIO, TIME, RATE, ARE, AAE, ACC, TP, FP, TN, FN, PRC, RCL, F1, PODF, DIST}

// Show renders the report as a fixed-width table on stdout, auto-scaling
// the units.
func (r *Report) Show() {
	r.write(os.Stdout)
}

func (r *Report) write(w io.Writer) {
	fmt.Fprintf(w, "============ %-18s ============\n", r.Sketch)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Op", "Metric", "Value"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, row := range r.Rows() {
		table.Append(row)
	}
	table.Render()
}

// Rows flattens the report into (op, metric, rendered value) rows in
// display order. Report sinks reuse the same flattening.
func (r *Report) Rows() [][]string {
	var rows [][]string
	for _, op := range r.opNames() {
		res := r.Ops[op]
		for _, m := range metricOrder {
			v, ok := res[m]
			if !ok {
				continue
			}
			switch m {
			case DIST:
				d := v.(DistValue)
				for i, q := range d.Quantiles {
					rows = append(rows, []string{opLabel[op],
						fmt.Sprintf("RE<=%g", q), fmt.Sprintf("%g%%", d.Fractions[i]*1e2)})
				}
			case PODF:
				p := v.(PODFValue)
				rows = append(rows, []string{opLabel[op],
					fmt.Sprintf("PODF<=%g", p.Threshold), fmt.Sprintf("%g%%", p.Fraction*1e2)})
			default:
				rows = append(rows, []string{opLabel[op], string(m), renderValue(m, v)})
			}
		}
	}
	return rows
}

func (r *Report) opNames() []string {
	var names []string
	for _, op := range opOrder {
		if _, ok := r.Ops[op]; ok {
			names = append(names, op)
		}
	}
	// Keep unknown families, if any, in name order at the end.
	var rest []string
	for op := range r.Ops {
		if opLabel[op] == "" {
			rest = append(rest, op)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func renderValue(m Metric, v interface{}) string {
	switch m {
	case SIZE:
		return fmtBytes(v.(int))
	case TIME:
		return fmtTime(v.(int64))
	case RATE:
		return fmtRate(v.(float64))
	case ACC, TP, FP, TN, FN, PRC, RCL:
		return fmt.Sprintf("%g%%", v.(float64)*1e2)
	default:
		return fmt.Sprintf("%g", v)
	}
}

func fmtBytes(size int) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1<<20:
		return fmt.Sprintf("%g kB", float64(size)/1024)
	default:
		return fmt.Sprintf("%g MB", float64(size)/1024/1024)
	}
}

func fmtTime(us int64) string {
	switch {
	case us < 1e3:
		return fmt.Sprintf("%d us", us)
	case us < 1e6:
		return fmt.Sprintf("%g ms", float64(us)/1e3)
	default:
		return fmt.Sprintf("%g s", float64(us)/1e6)
	}
}

func fmtRate(r float64) string {
	switch {
	case r < 1e3:
		return fmt.Sprintf("%g pac/s", r)
	case r < 1e6:
		return fmt.Sprintf("%g Kpac/s", r/1e3)
	default:
		return fmt.Sprintf("%g Mpac/s", r/1e6)
	}
}
