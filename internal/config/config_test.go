// ABOUTME: Tests for configuration parsing
// ABOUTME: Covers defaults, YAML loading, flag overrides, and validation
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromArgs(nil)
	if err != nil {
		t.Fatalf("FromArgs failed: %v", err)
	}

	if cfg.Mode != ModeReceiver {
		t.Errorf("expected default mode receiver, got %s", cfg.Mode)
	}
	if cfg.Port != 9876 {
		t.Errorf("expected default port 9876, got %d", cfg.Port)
	}
	if cfg.SampleRate != 48000 || cfg.Channels != 2 || cfg.BufferSize != 512 {
		t.Errorf("unexpected default stream settings: %+v", cfg)
	}
	if cfg.Transport != "tcp-pcm" {
		t.Errorf("expected default transport tcp-pcm, got %s", cfg.Transport)
	}
}

func TestFlagParsing(t *testing.T) {
	cfg, err := FromArgs([]string{
		"-mode", "sender",
		"-target", "192.168.1.10",
		"-port", "7000",
		"-sample-rate", "44100",
		"-channels", "1",
		"-tone",
	})
	if err != nil {
		t.Fatalf("FromArgs failed: %v", err)
	}

	if cfg.Mode != ModeSender {
		t.Errorf("expected sender mode, got %s", cfg.Mode)
	}
	if cfg.Target != "192.168.1.10" {
		t.Errorf("expected target 192.168.1.10, got %s", cfg.Target)
	}
	if cfg.Port != 7000 || cfg.SampleRate != 44100 || cfg.Channels != 1 {
		t.Errorf("unexpected parsed settings: %+v", cfg)
	}
	if !cfg.TestTone {
		t.Error("expected test tone enabled")
	}
}

func TestYAMLLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acaud.yaml")
	body := `mode: sender
target: 10.0.0.5
port: 7777
sample_rate: 96000
channels: 4
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := FromArgs([]string{"-config", path})
	if err != nil {
		t.Fatalf("FromArgs failed: %v", err)
	}

	if cfg.Mode != ModeSender || cfg.Target != "10.0.0.5" || cfg.Port != 7777 {
		t.Errorf("yaml values not applied: %+v", cfg)
	}
	if cfg.SampleRate != 96000 || cfg.Channels != 4 {
		t.Errorf("yaml stream settings not applied: %+v", cfg)
	}
	// Unset keys keep their defaults.
	if cfg.BufferSize != 512 {
		t.Errorf("expected default buffer size 512, got %d", cfg.BufferSize)
	}
}

func TestFlagsOverrideYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acaud.yaml")
	if err := os.WriteFile(path, []byte("port: 7777\nchannels: 4\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := FromArgs([]string{"-config", path, "-port", "9999"})
	if err != nil {
		t.Fatalf("FromArgs failed: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("expected flag to override yaml port, got %d", cfg.Port)
	}
	if cfg.Channels != 4 {
		t.Errorf("expected yaml channels preserved, got %d", cfg.Channels)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"bad mode", []string{"-mode", "relay"}},
		{"bad transport", []string{"-transport", "udp-rtp"}},
		{"bad port", []string{"-port", "0"}},
		{"bad channels", []string{"-channels", "0"}},
		{"bad sample rate", []string{"-sample-rate", "-1"}},
		{"bad output backend", []string{"-output-backend", "pulse"}},
		{"sender without target or mdns", []string{"-mode", "sender", "-no-mdns"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := FromArgs(tc.args); err == nil {
				t.Errorf("expected error for %v", tc.args)
			}
		})
	}
}

func TestStreamConfig(t *testing.T) {
	cfg := Default()
	sc := cfg.StreamConfig()

	if sc.SampleRate != 48000 || sc.Channels != 2 || sc.BitsPerSample != 32 || sc.BufferSize != 512 {
		t.Errorf("unexpected stream config: %+v", sc)
	}
}

func TestMissingConfigFile(t *testing.T) {
	if _, err := FromArgs([]string{"-config", "/nonexistent/acaud.yaml"}); err == nil {
		t.Error("expected error for missing config file")
	}
}
