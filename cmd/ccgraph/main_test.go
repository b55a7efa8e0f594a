package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	require.NotNil(t, rootCmd)
	assert.Equal(t, "ccgraph", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)

	for _, name := range []string{"config", "log-level", "log-format", "backend", "store", "remote"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestSubcommands(t *testing.T) {
	want := []string{"discover", "shared", "validate", "lookup", "neighbors", "convert", "import", "fetch", "check", "versions", "serve-store", "token", "config"}
	have := map[string]*cobra.Command{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = c
	}
	for _, name := range want {
		c, ok := have[name]
		if assert.True(t, ok, name) && name != "config" {
			assert.NotNil(t, c.RunE, name)
		}
	}
	assert.True(t, configCmd.HasSubCommands())
}

func TestReadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("# news\nbbc.co.uk\n\n  nytimes.com  \n"), 0o644))

	seeds, err := readSeeds([]string{"example.com"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "bbc.co.uk", "nytimes.com"}, seeds)

	_, err = readSeeds(nil, "")
	assert.Error(t, err)

	_, err = readSeeds(nil, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportThenQuery(t *testing.T) {
	dir := t.TempDir()
	vertices := filepath.Join(dir, "vertices.txt")
	arcs := filepath.Join(dir, "arcs.txt")
	store := filepath.Join(dir, "graph.db")
	cfgPath := filepath.Join(dir, "ccgraph.yaml")

	require.NoError(t, os.WriteFile(vertices, []byte("0\tcom.hub\n1\tcom.a\n2\tcom.b\n3\tcom.half\n"), 0o644))
	require.NoError(t, os.WriteFile(arcs, []byte("0\t1\n0\t2\n3\t1\n1\t2\n"), 0o644))
	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.Join([]string{
		"store:",
		"  backend: sqlite",
		"  path: " + store,
		"cache:",
		"  enabled: false",
		"snapshot:",
		"  data_dir: " + dir,
		"log:",
		"  level: error",
		"  format: text",
		"",
	}, "\n")), 0o644))

	out, err := execute(t, "--config", cfgPath, "import", "--vertices", vertices, "--arcs", arcs, "--batch", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 vertices and 4 arcs")

	out, err = execute(t, "--config", cfgPath, "discover", "a.com", "b.com", "--min", "2", "--format", "csv")
	require.NoError(t, err)
	assert.Equal(t, "domain,connections,percentage\nhub.com,2,100\n", out)

	saved := filepath.Join(dir, "result.json")
	_, err = execute(t, "--config", cfgPath, "discover", "a.com", "b.com", "--min", "2", "--format", "json", "-o", saved)
	require.NoError(t, err)
	outputPath = ""

	out, err = execute(t, "--config", cfgPath, "convert", saved, "--format", "edges")
	require.NoError(t, err)
	assert.Equal(t, "hub.com\ta.com\nhub.com\tb.com\n", out)

	out, err = execute(t, "--config", cfgPath, "import", "--vertices", vertices, "--arcs", arcs, "--replace")
	require.NoError(t, err)
	assert.Contains(t, out, "imported 4 vertices and 4 arcs")

	out, err = execute(t, "--config", cfgPath, "lookup", "a.com", "nope.com")
	require.NoError(t, err)
	assert.Equal(t, "a.com\t1\nnope.com\t-\n", out)

	out, err = execute(t, "--config", cfgPath, "neighbors", "a.com", "--direction", "outlinks")
	require.NoError(t, err)
	assert.Equal(t, "b.com\n", out)

	out, err = execute(t, "--config", cfgPath, "shared", "a.com", "b.com", "--direction", "backlinks", "--min-shared", "0")
	require.NoError(t, err)
	assert.Equal(t, "hub.com\n", out)
}
