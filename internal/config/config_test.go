package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	settings, err := Load(GlobalFlags{})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("expected json output, got %s", settings.OutputMode)
	}
	if settings.TokenDecimals != 12 {
		t.Fatalf("expected 12 decimals, got %d", settings.TokenDecimals)
	}
	if settings.ConfirmTimeout != 4*time.Minute {
		t.Fatalf("unexpected confirm timeout: %s", settings.ConfirmTimeout)
	}
	if settings.SS58Network != 42 {
		t.Fatalf("unexpected ss58 network: %d", settings.SS58Network)
	}
}

func TestLoadFileThenEnvThenFlags(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := `
output: plain
timeout: 15s
chain:
  name: polkadot
  rpc_url: wss://file.example
  ss58_network: 0
  token_symbol: DOT
  token_decimals: 10
store:
  snapshot_ttl: 90s
`
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STAKECTL_RPC_URL", "wss://env.example")

	settings, err := Load(GlobalFlags{ConfigPath: cfgPath, Timeout: "20s", JSON: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RPCURL != "wss://env.example" {
		t.Fatalf("expected env to override file rpc url, got %s", settings.RPCURL)
	}
	if settings.Timeout != 20*time.Second {
		t.Fatalf("expected flag to override file timeout, got %s", settings.Timeout)
	}
	if settings.OutputMode != "json" {
		t.Fatalf("expected --json to override file output, got %s", settings.OutputMode)
	}
	if settings.TokenSymbol != "DOT" || settings.TokenDecimals != 10 {
		t.Fatalf("expected file chain settings applied")
	}
	if settings.SnapshotTTL != 90*time.Second {
		t.Fatalf("unexpected snapshot ttl: %s", settings.SnapshotTTL)
	}
}

func TestLoadRejectsConflictingOutputFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	if _, err := Load(GlobalFlags{JSON: true, Plain: true}); err == nil {
		t.Fatalf("expected error for --json with --plain")
	}
}
