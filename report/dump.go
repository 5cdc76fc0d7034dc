package report

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/sha3"

	"coroinfer/fixed"
	"coroinfer/sensoridx"
	"coroinfer/utils"
)

// dumpWidth is the wrap column of vector dumps.
const dumpWidth = 64

// DumpVector writes "label = [ a b c ]", wrapping lines at dumpWidth.
func DumpVector(w io.Writer, label string, items []string) error {
	var b strings.Builder
	col := 0
	if label != "" {
		b.WriteString(label + " = ")
		col = len(label) + 3
	}
	b.WriteByte('[')
	col++
	for _, it := range items {
		if col+1+len(it) > dumpWidth {
			b.WriteString("\n ")
			col = 1
		}
		b.WriteByte(' ')
		b.WriteString(it)
		col += 1 + len(it)
	}
	b.WriteString(" ]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// DumpResults writes one result vector as 0/1 items.
func DumpResults(w io.Writer, label string, results []bool) error {
	items := make([]string, len(results))
	for i, r := range results {
		items[i] = "0"
		if r {
			items[i] = "1"
		}
	}
	return DumpVector(w, label, items)
}

// DumpFixed writes a fixed-point vector in decimal form.
func DumpFixed(w io.Writer, label string, v []fixed.Q) error {
	items := make([]string, len(v))
	for i, q := range v {
		items[i] = utils.Ftoa(float64(q.Float()))
	}
	return DumpVector(w, label, items)
}

// DumpIDs writes entity ids in canonical form.
func DumpIDs(w io.Writer, label string, ids []sensoridx.EntityID) error {
	items := make([]string, len(ids))
	for i := range ids {
		items[i] = ids[i].String()
	}
	return DumpVector(w, label, items)
}

// ───────────────────────────── index table ────────────────────────────────

// TreeTable renders the index configuration and page statistics.
func TreeTable(w io.Writer, st sensoridx.Stats, binSearchThreshold int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("B+Tree")
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"leaf_slots", st.LeafSlots},
		{"inner_slots", st.InnerSlots},
		{"binsearch_threshold", binSearchThreshold},
	})
	tw.AppendSeparator()
	tw.AppendRows([]table.Row{
		{"size", st.Size},
		{"nodes", st.Nodes()},
		{"leaves", st.Leaves},
		{"inner_nodes", st.InnerNodes},
		{"levels", st.Levels},
		{"avgfill", utils.Ftoa(st.AvgFillLeaves())},
	})
	tw.Render()
}

// ───────────────────────────── results ────────────────────────────────────

// EntityResult is the JSON form of one entity's results.
type EntityResult struct {
	ID      string `json:"id"`
	Results []bool `json:"results"`
}

// ResultsJSON writes every entity's result vector as a JSON array. results is
// entity-major with perEntity items per entity.
func ResultsJSON(w io.Writer, ids []sensoridx.EntityID, results []bool, perEntity int) error {
	out := make([]EntityResult, len(ids))
	for e := range ids {
		out[e] = EntityResult{
			ID:      ids[e].String(),
			Results: results[e*perEntity : (e+1)*perEntity],
		}
	}
	buf, err := sonnet.Marshal(out)
	if err != nil {
		return err
	}
	_, err = w.Write(append(buf, '\n'))
	return err
}

// Digest is SHA3-256 over the result count followed by the results packed
// eight to a byte. Equal vectors give equal digests.
func Digest(results []bool) [32]byte {
	n := uint64(len(results))
	packed := make([]byte, 8+(len(results)+7)/8)
	for i := 0; i < 8; i++ {
		packed[i] = byte(n >> (8 * i))
	}
	for i, r := range results {
		if r {
			packed[8+i>>3] |= 1 << (i & 7)
		}
	}
	return sha3.Sum256(packed)
}
