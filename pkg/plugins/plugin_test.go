package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/scanfold/pkg/engine"
	"github.com/user/scanfold/pkg/resolve"
	"github.com/user/scanfold/pkg/xmltree"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// forEachQuerier runs fn once per query engine; both must agree.
func forEachQuerier(t *testing.T, fn func(t *testing.T, q xmltree.Querier)) {
	for _, name := range []string{xmltree.EngineXPath, xmltree.EngineScan} {
		t.Run(name, func(t *testing.T) {
			q, err := xmltree.NewQuerier(name)
			require.NoError(t, err)
			fn(t, q)
		})
	}
}

func record(t *testing.T, p Plugin, data []byte) *engine.Recorder {
	t.Helper()
	rec := engine.NewRecorder()
	require.NoError(t, engine.Emit(context.Background(), rec, p.Parse(context.Background(), data)))
	return rec
}

func testRegistry() *Registry {
	return NewRegistry(Options{
		Querier:  xmltree.ScanQuerier{},
		Resolver: resolve.Static{"app.example.com": "10.9.9.9"},
	})
}

func TestRegistryListAndGet(t *testing.T) {
	reg := testRegistry()

	var ids []string
	for _, p := range reg.List() {
		ids = append(ids, p.ID())
	}
	assert.Equal(t, []string{"metasploit", "ndiff", "qualysguard", "zap"}, ids)

	p, err := reg.Get("ZAP")
	require.NoError(t, err)
	assert.Equal(t, "zap", p.ID())

	_, err = reg.Get("nessus")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistryDetect(t *testing.T) {
	reg := testRegistry()
	cases := map[string]string{
		"metasploit.xml":   "metasploit",
		"ndiff.xml":        "ndiff",
		"qualys_asset.xml": "qualysguard",
		"qualys_scan.xml":  "qualysguard",
		"zap.xml":          "zap",
	}
	for file, id := range cases {
		p, err := reg.Detect(fixture(t, file))
		require.NoError(t, err, file)
		assert.Equal(t, id, p.ID(), file)
	}

	_, err := reg.Detect([]byte(`<nessusReport/>`))
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = reg.Detect(nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRegistryRunIntoGraph(t *testing.T) {
	reg := testRegistry()
	graph := engine.NewUnifiedGraph()
	for _, file := range []string{"metasploit.xml", "zap.xml"} {
		data := fixture(t, file)
		p, err := reg.Detect(data)
		require.NoError(t, err)
		require.NoError(t, reg.Run(context.Background(), p, data, graph))
	}
	st := graph.Stats()
	assert.Equal(t, 4, st.Hosts)
	assert.Equal(t, 4, st.Services)
	assert.Equal(t, 5, st.WebVulns)
	assert.Equal(t, 1, st.Credentials)
}

func TestEmptyAndIrrelevantDocuments(t *testing.T) {
	reg := testRegistry()
	inputs := [][]byte{
		nil,
		[]byte(""),
		[]byte("<<<not xml"),
		[]byte(`<?xml version="1.0"?><report><item/></report>`),
		[]byte(`<!DOCTYPE SCAN SYSTEM "x.dtd"><SCAN><broken></SCAN>`),
	}
	for _, p := range reg.List() {
		for _, in := range inputs {
			assert.Empty(t, p.Parse(context.Background(), in), "%s on %q", p.ID(), in)
		}
	}
}

func TestParsingIsRepeatable(t *testing.T) {
	reg := testRegistry()
	for _, file := range []string{"metasploit.xml", "ndiff.xml", "qualys_asset.xml", "qualys_scan.xml", "zap.xml"} {
		data := fixture(t, file)
		p, err := reg.Detect(data)
		require.NoError(t, err)
		first, second := record(t, p, data), record(t, p, data)
		assert.NotEmpty(t, first.Calls, file)
		assert.Equal(t, first.Calls, second.Calls, file)
	}
}
