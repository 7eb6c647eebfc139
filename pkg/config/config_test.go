package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"src.cgv.sh/pkg/must"
	"src.cgv.sh/pkg/testutil"
)

func unsetEnv(t *testing.T) {
	testutil.Unsetenv(t, EnvMaxSymbolDepth)
	testutil.Unsetenv(t, EnvBatchSize)
	testutil.Unsetenv(t, EnvSeed)
}

func TestLoad_Defaults(t *testing.T) {
	unsetEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	unsetEnv(t)
	path := filepath.Join(t.TempDir(), "cgv.yaml")
	must.WriteFile(path, "max_symbol_depth: 10\nseed: 3\nroots: [a, b]\n")
	testutil.Setenv(t, EnvSeed, "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := Config{MaxSymbolDepth: 10, BatchSize: 100, Seed: 7, Roots: []string{"a", "b"}}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestLoad_Errors(t *testing.T) {
	unsetEnv(t)
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Errorf("no error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	must.WriteFile(bad, "batch_size: 0\n")
	if _, err := Load(bad); err == nil {
		t.Errorf("no error for zero batch size")
	}

	testutil.Setenv(t, EnvBatchSize, "many")
	if _, err := Load(""); err == nil {
		t.Errorf("no error for bad %s", EnvBatchSize)
	}
}
