package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/sugawarayuuta/sonnet"

	"coroinfer/probe"
	"coroinfer/sensoridx"
)

var shape = Shape{Sensors: 100, Samples: 8, Datagram: 64, Tasks: 6}

func TestTimingLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Header(true))
	require.NoError(t, w.Three(shape, [3]int64{300, 100, 250}, Ratios([3]int64{300, 100, 250})))
	require.NoError(t, w.Header(false))
	require.NoError(t, w.One(shape, ModelCoroutine, 1234))
	require.NoError(t, w.Summary(shape, [2]float64{3, 2.5}))
	require.NoError(t, w.Close())

	want := strings.Join([]string{
		"sensors,samples,datagram,seq0,coro,seq1,ratio0,ratio1",
		"100,8,64,300,100,250,3.000000,2.500000",
		"sensors,samples,datagram,model,time",
		"100,8,64,coroutine,1234",
		"sensors,100,samples,8,datagram,64,tasks,6,ratio0,3.000000,ratio1,2.500000",
	}, "\n") + "\n"
	require.Equal(t, want, buf.String())
}

func TestRatiosZeroSpan(t *testing.T) {
	require.Equal(t, [2]float64{}, Ratios([3]int64{5, 0, 5}))
}

func TestModelNames(t *testing.T) {
	require.Equal(t, "sequential", ModelSequential.String())
	require.Equal(t, "model7", Model(7).String())
}

func TestPerfLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.PerfHeader())
	require.NoError(t, w.PerfLine(2, 1, ModelCoroutine, probe.Sample{10, 20, 30, 4}))
	require.Equal(t,
		"repeat,step,model,cpu_cycles,instructions,d_cache_reads,d_cache_misses\n2,1,1,10,20,30,4\n",
		buf.String())
}

func TestCreateAppendAndTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	for i := 0; i < 2; i++ {
		w, err := Create(path, true)
		require.NoError(t, err)
		require.NoError(t, w.One(shape, ModelSequential, int64(i)))
		require.NoError(t, w.Close())
	}
	raw, _ := os.ReadFile(path)
	require.Equal(t, 2, strings.Count(string(raw), "\n"))

	w, err := Create(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	raw, _ = os.ReadFile(path)
	require.Empty(t, raw)
}

func TestDumpVectorWraps(t *testing.T) {
	var buf bytes.Buffer
	res := make([]bool, 100)
	res[3] = true
	require.NoError(t, DumpResults(&buf, "results 0", res))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "results 0 = [ 0 0 0 1 0"))
	require.True(t, strings.HasSuffix(out, " ]\n"))
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		require.LessOrEqual(t, len(line), dumpWidth+2)
	}
	require.Equal(t, 100, strings.Count(out, "0")+strings.Count(out, "1")-strings.Count("results 0", "0"))
}

func TestTreeTable(t *testing.T) {
	ids := make([]sensoridx.EntityID, 50)
	for i := range ids {
		ids[i][15] = byte(i)
	}
	tree, err := sensoridx.Build(sensoridx.DefaultTraits(), ids)
	require.NoError(t, err)
	var buf bytes.Buffer
	TreeTable(&buf, tree.Stats(), 256)
	out := buf.String()
	for _, want := range []string{"leaf_slots", "12", "inner_slots", "avgfill", "50"} {
		require.Contains(t, out, want)
	}
}

func TestResultsJSON(t *testing.T) {
	ids := make([]sensoridx.EntityID, 2)
	ids[1][0] = 0xAB
	var buf bytes.Buffer
	require.NoError(t, ResultsJSON(&buf, ids, []bool{true, false, false, true}, 2))

	var got []EntityResult
	require.NoError(t, sonnet.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, []EntityResult{
		{ID: ids[0].String(), Results: []bool{true, false}},
		{ID: ids[1].String(), Results: []bool{false, true}},
	}, got)
}

func TestDigest(t *testing.T) {
	a := []bool{true, false, true, true, false, false, false, false, true}
	b := append([]bool(nil), a...)
	require.Equal(t, Digest(a), Digest(b))
	b[8] = false
	require.NotEqual(t, Digest(a), Digest(b))
	require.NotEqual(t, Digest([]bool{true}), Digest([]bool{true, false}))
}
