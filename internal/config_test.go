package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_config.toml")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig failed: %v", err)
	}
	if cfg.OfferPort != 13117 {
		t.Errorf("offer port = %d, want 13117", cfg.OfferPort)
	}
	if cfg.BroadcastInterval != 1 {
		t.Errorf("broadcast interval = %d, want 1", cfg.BroadcastInterval)
	}
	if cfg.PortRangeMin != 20000 || cfg.PortRangeMax != 65000 {
		t.Errorf("port range = [%d, %d), want [20000, 65000)", cfg.PortRangeMin, cfg.PortRangeMax)
	}
	if cfg.ServerID == "" {
		t.Error("server id should default to a uuid")
	}

	// Written on first run.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not persisted: %v", err)
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_config.toml")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig failed: %v", err)
	}
	if cfg.OfferPort != 13117 {
		t.Errorf("offer port = %d, want 13117", cfg.OfferPort)
	}
	if cfg.UDPTimeoutSec != 5 {
		t.Errorf("udp timeout = %d, want 5", cfg.UDPTimeoutSec)
	}
	if cfg.ClientUUID == "" {
		t.Error("client uuid should default to a uuid")
	}
}

func TestLoadConfigRoundTripsThroughSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server_config.toml")

	first, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}
	if first.ServerID != second.ServerID {
		t.Errorf("server id not stable across loads: %q vs %q", first.ServerID, second.ServerID)
	}
}
