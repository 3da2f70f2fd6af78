package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/scanfold/pkg/config"
	"github.com/user/scanfold/pkg/plugins"
	"github.com/user/scanfold/pkg/resolve"
	"github.com/user/scanfold/pkg/xmltree"
)

func testdata(name string) string {
	return filepath.Join("..", "pkg", "plugins", "testdata", name)
}

func offlineRegistry() *plugins.Registry {
	return plugins.NewRegistry(plugins.Options{
		Querier:  xmltree.ScanQuerier{},
		Resolver: resolve.Static{"app.example.com": "10.9.9.9"},
	})
}

// useSettings swaps the package settings for the duration of a test.
func useSettings(t *testing.T, cfg *config.Config) {
	prev := settings
	settings = cfg
	t.Cleanup(func() { settings = prev })
}

func TestParseFilesKeepsArgumentOrder(t *testing.T) {
	paths := []string{testdata("zap.xml"), testdata("ndiff.xml"), testdata("metasploit.xml"), testdata("qualys_scan.xml")}
	files, err := parseFiles(context.Background(), offlineRegistry(), paths, "auto", 2)
	require.NoError(t, err)
	require.Len(t, files, 4)

	var ids []string
	for i, f := range files {
		assert.Equal(t, paths[i], f.Path)
		ids = append(ids, f.Plugin.ID())
	}
	assert.Equal(t, []string{"zap", "ndiff", "metasploit", "qualysguard"}, ids)
	assert.Len(t, files[1].Reports, 3)
}

func TestParseFilesErrors(t *testing.T) {
	reg := offlineRegistry()

	odd := filepath.Join(t.TempDir(), "nessus.xml")
	require.NoError(t, os.WriteFile(odd, []byte(`<NessusClientData_v2/>`), 0600))
	_, err := parseFiles(context.Background(), reg, []string{testdata("zap.xml"), odd}, "", 4)
	assert.ErrorIs(t, err, plugins.ErrUnknownFormat)

	_, err = parseFiles(context.Background(), reg, []string{testdata("missing.xml")}, "", 4)
	assert.Error(t, err)

	_, err = parseFiles(context.Background(), reg, []string{testdata("zap.xml")}, "nessus", 4)
	assert.ErrorIs(t, err, plugins.ErrUnknownFormat)
}

func TestParseFilesForcedFormat(t *testing.T) {
	files, err := parseFiles(context.Background(), offlineRegistry(), []string{testdata("zap.xml")}, "ndiff", 1)
	require.NoError(t, err)
	assert.Equal(t, "ndiff", files[0].Plugin.ID())
	assert.Empty(t, files[0].Reports, "a zap document has no ndiff hosts")
}

func TestIngestDryRun(t *testing.T) {
	useSettings(t, config.Default())

	var out bytes.Buffer
	err := runIngest(context.Background(), &out, offlineRegistry(), []string{testdata("ndiff.xml")}, ingestOptions{dryRun: true})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6)

	var call struct {
		Method string `json:"method"`
		ID     string `json:"id"`
		HostID string `json:"host_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &call))
	assert.Equal(t, "CreateHost", call.Method)
	assert.Equal(t, "host-1", call.ID)
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &call))
	assert.Equal(t, "CreateVulnOnHost", call.Method)
	assert.Equal(t, "host-1", call.HostID)
}

func TestIngestTable(t *testing.T) {
	useSettings(t, config.Default())

	var out bytes.Buffer
	paths := []string{testdata("ndiff.xml"), testdata("zap.xml")}
	require.NoError(t, runIngest(context.Background(), &out, offlineRegistry(), paths, ingestOptions{}))
	for _, ip := range []string{"10.0.0.1", "10.0.0.3", "2001:db8::7", "10.9.9.9", "10.3.3.3"} {
		assert.Contains(t, out.String(), ip)
	}
}

func TestIngestSnapshotAndBase(t *testing.T) {
	cfg := config.Default()
	cfg.Output = "json"
	useSettings(t, cfg)
	reg := offlineRegistry()
	snap := filepath.Join(t.TempDir(), "graph.json")

	var first bytes.Buffer
	require.NoError(t, runIngest(context.Background(), &first, reg, []string{testdata("ndiff.xml")}, ingestOptions{snapshot: snap}))
	_, err := os.Stat(snap)
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, runIngest(context.Background(), &second, reg, []string{testdata("zap.xml")}, ingestOptions{base: snap}))

	var doc struct {
		Hosts []json.RawMessage `json:"hosts"`
	}
	require.NoError(t, json.Unmarshal(second.Bytes(), &doc))
	assert.Len(t, doc.Hosts, 5)
}

func TestRenderPlugins(t *testing.T) {
	var out bytes.Buffer
	renderPlugins(&out, offlineRegistry())
	for _, want := range []string{"metasploit", "MetasploitV5", "ndiff", "nmapdiff", "qualysguard", "ASSET_DATA_REPORT", "zap", "OWASPZAPReport"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestLoadSettingsLayers(t *testing.T) {
	t.Cleanup(viper.Reset)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 2\noutput: yaml\n"), 0600))
	prev := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = prev })

	t.Setenv("SCANFOLD_OUTPUT", "json")
	t.Setenv("SCANFOLD_RESOLVE_TIMEOUT", "250ms")

	c := &cobra.Command{Use: "test"}
	c.Flags().String("query-engine", "", "")
	c.Flags().StringP("output", "o", "", "")
	c.Flags().Duration("resolve-timeout", 0, "")
	require.NoError(t, c.Flags().Parse([]string{"--query-engine", "scan"}))

	cfg, err := loadSettings(c)
	require.NoError(t, err)
	assert.Equal(t, "scan", cfg.QueryEngine)
	assert.Equal(t, "json", cfg.Output, "environment beats the file")
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "250ms", cfg.Resolver.Timeout.String())
}

func TestLoadSettingsRejectsBadFlag(t *testing.T) {
	t.Cleanup(viper.Reset)
	prev := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { cfgFile = prev })

	c := &cobra.Command{Use: "test"}
	c.Flags().String("query-engine", "", "")
	require.NoError(t, c.Flags().Parse([]string{"--query-engine", "sax"}))

	_, err := loadSettings(c)
	assert.ErrorContains(t, err, "--query-engine")
}

func TestRunSetup(t *testing.T) {
	cfg := config.Default()
	in := strings.NewReader("2\ny\n500ms\n3\n8\n")
	var out bytes.Buffer
	require.NoError(t, runSetup(in, &out, cfg))

	assert.Equal(t, "scan", cfg.QueryEngine)
	assert.False(t, cfg.Resolver.Offline)
	assert.Equal(t, "500ms", cfg.Resolver.Timeout.String())
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Contains(t, out.String(), "Step 4")
}

func TestRunSetupKeepsDefaultsAndSkipsTimeoutOffline(t *testing.T) {
	cfg := config.Default()
	in := strings.NewReader("\nn\njson\n\n")
	require.NoError(t, runSetup(in, &bytes.Buffer{}, cfg))

	assert.Equal(t, "xpath", cfg.QueryEngine)
	assert.True(t, cfg.Resolver.Offline)
	assert.Equal(t, config.Default().Resolver.Timeout, cfg.Resolver.Timeout)
	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestRunSetupRejectsInvalidChoice(t *testing.T) {
	assert.Error(t, runSetup(strings.NewReader("9\n"), &bytes.Buffer{}, config.Default()))
	assert.Error(t, runSetup(strings.NewReader("\n\n\npdf\n"), &bytes.Buffer{}, config.Default()))
}

func TestShellSession(t *testing.T) {
	useSettings(t, config.Default())
	snap := filepath.Join(t.TempDir(), "graph.json")

	script := strings.Join([]string{
		"help",
		"load " + testdata("metasploit.xml"),
		"load " + testdata("zap.xml") + " zap",
		"stats",
		"save " + snap,
		"reset",
		"stats",
		"open " + snap,
		"show report",
		"show pdf",
		"bogus",
		"quit",
		"stats",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runShell(context.Background(), strings.NewReader(script), &out, offlineRegistry()))

	text := out.String()
	assert.Contains(t, text, "load <file> [plugin]")
	assert.Contains(t, text, "[metasploit] ")
	assert.Contains(t, text, "[zap] ")
	assert.Contains(t, text, "hosts=4 services=4")
	assert.Contains(t, text, "hosts=0 services=0")
	assert.Contains(t, text, "Loaded 4 hosts from "+snap)
	assert.Contains(t, text, "Unified Graph (4 hosts)")
	assert.Contains(t, text, `Error: unknown format "pdf"`)
	assert.Contains(t, text, `Error: unknown command "bogus"`)
	assert.Equal(t, 1, strings.Count(text, "hosts=4 services=4"), "nothing runs after quit")
}

func TestRunDiff(t *testing.T) {
	useSettings(t, config.Default())
	reg := offlineRegistry()
	dir := t.TempDir()
	before, after := filepath.Join(dir, "before.json"), filepath.Join(dir, "after.json")

	require.NoError(t, runIngest(context.Background(), &bytes.Buffer{}, reg, []string{testdata("ndiff.xml")}, ingestOptions{snapshot: before}))
	require.NoError(t, runIngest(context.Background(), &bytes.Buffer{}, reg, []string{testdata("ndiff.xml"), testdata("zap.xml")}, ingestOptions{snapshot: after}))

	var out bytes.Buffer
	require.NoError(t, runDiff(&out, before, after, "table", 10, ""))
	assert.Contains(t, out.String(), "FIXED RISKS: 0\n")
	assert.Contains(t, out.String(), "UNCHANGED RISKS: 3\n")
	assert.Contains(t, out.String(), "Cross Site Scripting (Reflected) (10.9.9.9 80/tcp)")

	out.Reset()
	require.NoError(t, runDiff(&out, after, before, "json", 10, ""))
	var doc struct {
		New   []json.RawMessage `json:"new"`
		Fixed []json.RawMessage `json:"fixed"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Empty(t, doc.New)
	assert.Len(t, doc.Fixed, 3)
}

func TestRunDiffMinSeverity(t *testing.T) {
	useSettings(t, config.Default())
	reg := offlineRegistry()
	dir := t.TempDir()
	before, after := filepath.Join(dir, "before.json"), filepath.Join(dir, "after.json")

	require.NoError(t, runIngest(context.Background(), &bytes.Buffer{}, reg, []string{testdata("ndiff.xml")}, ingestOptions{snapshot: before}))
	require.NoError(t, runIngest(context.Background(), &bytes.Buffer{}, reg, []string{testdata("ndiff.xml"), testdata("zap.xml")}, ingestOptions{snapshot: after}))

	var out bytes.Buffer
	require.NoError(t, runDiff(&out, before, after, "json", 10, "High"))
	var doc struct {
		New []struct {
			Finding struct {
				Name     string `json:"name"`
				Severity string `json:"severity"`
			} `json:"finding"`
		} `json:"new"`
		Unchanged []json.RawMessage `json:"unchanged"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.NotEmpty(t, doc.New)
	for _, e := range doc.New {
		assert.Equal(t, "high", e.Finding.Severity, e.Finding.Name)
	}
	assert.Empty(t, doc.Unchanged, "ndiff findings are info")
}
