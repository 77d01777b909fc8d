package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetTablePrefix(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		override string
		want     string
	}{
		{name: "prod", env: "prod", want: "prod_"},
		{name: "test", env: "test", want: "test_"},
		{name: "dev", env: "dev", want: "dev_"},
		{name: "unknown falls back to dev", env: "staging", want: "dev_"},
		{name: "override wins", env: "prod", override: "custom_", want: "custom_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TABLE_PREFIX", tt.override)
			if got := getTablePrefix(tt.env); got != tt.want {
				t.Errorf("getTablePrefix(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWorkspaceDefaults(t *testing.T) {
	t.Setenv("MAX_LOADED_CANVASES", "")
	t.Setenv("DIVERGENCE_POLICY", "")

	cfg := Load()
	if cfg.Workspace.MaxLoadedCanvases != DefaultMaxLoadedCanvases {
		t.Errorf("MaxLoadedCanvases = %d, want %d", cfg.Workspace.MaxLoadedCanvases, DefaultMaxLoadedCanvases)
	}
	if cfg.Workspace.AutoOpenDwell != DefaultAutoOpenDwell {
		t.Errorf("AutoOpenDwell = %v, want %v", cfg.Workspace.AutoOpenDwell, DefaultAutoOpenDwell)
	}
	if cfg.Workspace.DivergencePolicy != DivergenceAccept {
		t.Errorf("DivergencePolicy = %q, want %q", cfg.Workspace.DivergencePolicy, DivergenceAccept)
	}
	if err := cfg.Workspace.Validate(); err != nil {
		t.Errorf("default workspace config should validate: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAX_LOADED_CANVASES", "5")
	t.Setenv("DIVERGENCE_POLICY", "sticky")

	cfg := Load()
	if cfg.Workspace.MaxLoadedCanvases != 5 {
		t.Errorf("MaxLoadedCanvases = %d, want 5", cfg.Workspace.MaxLoadedCanvases)
	}
	if cfg.Workspace.DivergencePolicy != DivergenceSticky {
		t.Errorf("DivergencePolicy = %q, want sticky", cfg.Workspace.DivergencePolicy)
	}
}

func TestLoadWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workspace.yaml")
	content := `
workspace:
  max_loaded_canvases: 7
  auto_open_dwell: 250ms
  divergence_policy: sticky
  event_replay: 16
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := LoadWorkspaceFile(path, DefaultWorkspaceConfig())
	if err != nil {
		t.Fatalf("LoadWorkspaceFile: %v", err)
	}
	if got.MaxLoadedCanvases != 7 {
		t.Errorf("MaxLoadedCanvases = %d, want 7", got.MaxLoadedCanvases)
	}
	if got.AutoOpenDwell != 250*time.Millisecond {
		t.Errorf("AutoOpenDwell = %v, want 250ms", got.AutoOpenDwell)
	}
	if got.DivergencePolicy != DivergenceSticky {
		t.Errorf("DivergencePolicy = %q, want sticky", got.DivergencePolicy)
	}
	if got.EventReplay != 16 {
		t.Errorf("EventReplay = %d, want 16", got.EventReplay)
	}
	// Untouched fields keep defaults
	if got.DefaultCanvasTitle != DefaultCanvasTitle {
		t.Errorf("DefaultCanvasTitle = %q, want %q", got.DefaultCanvasTitle, DefaultCanvasTitle)
	}
}

func TestLoadWorkspaceFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "zero cache size", content: "workspace:\n  max_loaded_canvases: 0\n"},
		{name: "negative event replay", content: "workspace:\n  event_replay: -1\n"},
		{name: "unknown policy", content: "workspace:\n  divergence_policy: merge\n"},
		{name: "malformed yaml", content: "workspace: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "workspace.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := LoadWorkspaceFile(path, DefaultWorkspaceConfig()); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSetupLogFilePrunesOldFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"canvasdesk-2020-01-01T00-00-00.log",
		"canvasdesk-2020-01-02T00-00-00.log",
		"canvasdesk-2020-01-03T00-00-00.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write log: %v", err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatalf("SetupLogFile: %v", err)
	}
	defer f.Close()

	files, _ := filepath.Glob(filepath.Join(dir, "canvasdesk-*.log"))
	if len(files) != 2 {
		t.Fatalf("expected 2 log files after pruning, got %d: %v", len(files), files)
	}
	if _, err := os.Stat(filepath.Join(dir, "canvasdesk-2020-01-01T00-00-00.log")); !os.IsNotExist(err) {
		t.Error("oldest log file should have been removed")
	}
}
