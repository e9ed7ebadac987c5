package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
general:
  reload_delay:
    seconds: 2
  processes_scan_each:
    seconds: 10
  webext_socket: /tmp/vaxtify.sock

category:
  fun:
    subreddits:
      - all
    domains:
      - youtube.com

rule:
  - categories: [fun]
    allowed:
      since: {hour: 9}
      until: {hour: 17}

permit:
  work:
    length:
      mins: 5
    cooldown:
      hours: 1
    categories: [fun]
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vaxtify.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Category) != 1 {
		t.Errorf("expected 1 category, got %d", len(cfg.Category))
	}
	if cfg.Category["fun"].Subreddits[0] != "all" {
		t.Errorf("expected subreddit 'all', got %v", cfg.Category["fun"].Subreddits)
	}
	if len(cfg.Rule) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(cfg.Rule))
	}
	if cfg.Rule[0].Name != "rule-1" {
		t.Errorf("expected default rule name 'rule-1', got %q", cfg.Rule[0].Name)
	}
	if got := cfg.Permit["work"].Length.Dur(); got != 5*time.Minute {
		t.Errorf("expected 5m permit length, got %v", got)
	}
	if got := cfg.Permit["work"].Cooldown.Dur(); got != time.Hour {
		t.Errorf("expected 1h cooldown, got %v", got)
	}
	if got := cfg.General.ProcessesScanEach.Dur(); got != 10*time.Second {
		t.Errorf("expected 10s scan interval, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/vaxtify.yaml"); err == nil {
		t.Fatalf("expected error loading a nonexistent config file")
	}
}

func TestLoadDefaultsProcessesScanEach(t *testing.T) {
	path := writeConfig(t, "category: {}\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := cfg.General.ProcessesScanEach.Dur(); got != DefaultProcessesScanEach {
		t.Errorf("expected default scan interval %v, got %v", DefaultProcessesScanEach, got)
	}
}

func TestLoadRejectsForbiddenPairing(t *testing.T) {
	path := writeConfig(t, `
general:
  prevent_browser_close: true
  close_all_after_block:
    seconds: 5
category: {}
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for forbidden pairing")
	}
}

func TestLoadRejectsDanglingCategory(t *testing.T) {
	path := writeConfig(t, `
category: {}
rule:
  - categories: [missing]
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for dangling category reference")
	}
}

func TestWatchFiresOnWrite(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	changed := make(chan struct{}, 4)
	w, err := Watch(path, func() { changed <- struct{}{} })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(sampleConfig+"\n# touch\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected onChange to fire after config file write")
	}
}
