package dirs

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is linux-only")
	}
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error: %v", err)
	}
	if want := filepath.Join(tmp, "plexprep"); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
	file, err := DefaultConfigFile()
	if err != nil || file != filepath.Join(tmp, "plexprep", "config.toml") {
		t.Errorf("DefaultConfigFile() = %q, %v", file, err)
	}
}

func TestEnsure(t *testing.T) {
	if err := Ensure(""); err == nil {
		t.Errorf("Ensure(\"\") should fail")
	}
	p := filepath.Join(t.TempDir(), "a", "b")
	if err := Ensure(p); err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if err := Ensure(p); err != nil {
		t.Errorf("second Ensure() error: %v", err)
	}
}
