package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: graphstore")

	code, _, stderr = runCLI(t, "", "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestDecode_Stdin(t *testing.T) {
	body := "rdf=&su=http%3A%2F%2Fex.org%2Fs&pu=http%3A%2F%2Fex.org%2Fp&ol=hello&ol="

	code, stdout, stderr := runCLI(t, body, "decode", "-")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "<http://ex.org/s> <http://ex.org/p> \"hello\" .\n", stdout)

	code, stdout, _ = runCLI(t, body, "decode", "-keep-empty")
	require.Equal(t, 0, code)
	assert.Equal(t, 2, strings.Count(stdout, "\n"))
}

func TestDecode_Fault(t *testing.T) {
	code, _, stderr := runCLI(t, "rdf=&su=%ZZ", "decode")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "decode fault")
}

func TestLoadDumpStats(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "db")
	input := filepath.Join(t.TempDir(), "people.nt")
	require.NoError(t, os.WriteFile(input, []byte(
		"<http://ex.org/alice> <http://xmlns.com/foaf/0.1/name> \"Alice\" .\n"+
			"<http://ex.org/alice> <http://xmlns.com/foaf/0.1/knows> <http://ex.org/bob> .\n"), 0o600))

	code, stdout, stderr := runCLI(t, "", "load", "-data", dataDir, "-graph", "http://ex.org/people", input)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Loaded 2 statements (2 new)")

	code, stdout, stderr = runCLI(t, "", "load", "-data", dataDir, "-default", input)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "(2 new)")

	code, stdout, stderr = runCLI(t, "", "dump", "-data", dataDir, "-graph", "http://ex.org/people")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 2, strings.Count(stdout, "<http://ex.org/people> .\n"))

	code, stdout, stderr = runCLI(t, "", "dump", "-data", dataDir)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 4, strings.Count(stdout, "\n"))

	code, _, stderr = runCLI(t, "", "dump", "-data", dataDir, "-graph", "http://ex.org/missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "graph not found")

	code, stdout, stderr = runCLI(t, "", "stats", "-data", dataDir)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Quads:         4")
	assert.Contains(t, stdout, "Named graphs:  1")
	assert.Contains(t, stdout, "<http://ex.org/people>  2 triples")
	assert.Contains(t, stdout, "On disk:")
}

func TestLoad_Validation(t *testing.T) {
	code, _, stderr := runCLI(t, "", "load")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "expected exactly one input file")

	code, _, stderr = runCLI(t, "", "load", "-default", "-graph", "http://ex.org/g", "x.nt")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "mutually exclusive")
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, "application/n-triples", formatFor("a.NT"))
	assert.Equal(t, "application/n-quads", formatFor("dir/b.nq"))
	assert.Equal(t, "application/rdf+x-www-form-urlencoded", formatFor("form.txt"))
}
