// ABOUTME: Daemon configuration from CLI flags and an optional YAML file
// ABOUTME: Flags given explicitly override values loaded from the file
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/acau-audio/acau-go/pkg/protocol"
)

// Mode selects the endpoint role.
type Mode string

const (
	ModeSender   Mode = "sender"
	ModeReceiver Mode = "receiver"
)

// Config holds every daemon setting.
type Config struct {
	Mode          Mode   `yaml:"mode"`
	Device        string `yaml:"device"`
	Target        string `yaml:"target"`
	Port          int    `yaml:"port"`
	APIPort       int    `yaml:"api_port"`
	SampleRate    int    `yaml:"sample_rate"`
	Channels      int    `yaml:"channels"`
	BufferSize    int    `yaml:"buffer_size"`
	Transport     string `yaml:"transport"`
	TestTone      bool   `yaml:"test_tone"`
	ToneFrequency int    `yaml:"tone_frequency"`
	AudioFile     string `yaml:"audio_file"`
	OutputBackend string `yaml:"output_backend"`
	NoMDNS        bool   `yaml:"no_mdns"`
	UseTUI        bool   `yaml:"tui"`
	LogFile       string `yaml:"log_file"`
	Verbose       bool   `yaml:"verbose"`
	ListDevices   bool   `yaml:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Mode:          ModeReceiver,
		Port:          9876,
		APIPort:       8080,
		SampleRate:    48000,
		Channels:      2,
		BufferSize:    512,
		Transport:     "tcp-pcm",
		ToneFrequency: 440,
		OutputBackend: "portaudio",
		LogFile:       "acaud.log",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// FromArgs parses the command line. When -config names a YAML file, the
// file supplies the base values and explicitly set flags win over it.
func FromArgs(args []string) (Config, error) {
	def := Default()
	fs := flag.NewFlagSet("acaud", flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML config file")
	mode := fs.String("mode", string(def.Mode), "endpoint role: sender or receiver")
	device := fs.String("device", def.Device, "audio device name (default device if empty)")
	target := fs.String("target", def.Target, "receiver address (sender mode)")
	port := fs.Int("port", def.Port, "stream port")
	apiPort := fs.Int("api-port", def.APIPort, "control API port")
	sampleRate := fs.Int("sample-rate", def.SampleRate, "sample rate in Hz")
	channels := fs.Int("channels", def.Channels, "channel count")
	bufferSize := fs.Int("buffer-size", def.BufferSize, "device block size in frames")
	transport := fs.String("transport", def.Transport, "transport backend")
	tone := fs.Bool("tone", def.TestTone, "stream a test tone instead of capturing")
	toneFreq := fs.Int("tone-freq", def.ToneFrequency, "test tone frequency in Hz")
	audioFile := fs.String("audio", def.AudioFile, "MP3 file to stream (sender mode)")
	outputBackend := fs.String("output-backend", def.OutputBackend, "playback backend: portaudio or oto")
	noMDNS := fs.Bool("no-mdns", def.NoMDNS, "disable mDNS discovery")
	useTUI := fs.Bool("tui", def.UseTUI, "show the status TUI")
	logFile := fs.String("log-file", def.LogFile, "log file path")
	verbose := fs.Bool("verbose", def.Verbose, "verbose logging")
	listDevices := fs.Bool("list-devices", false, "list audio devices and exit")

	if err := fs.Parse(args); err != nil {
		return def, err
	}

	cfg := def
	if *configPath != "" {
		loaded, err := Load(*configPath)
		if err != nil {
			return def, err
		}
		cfg = loaded
	}

	// Flags the user actually set override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Mode = Mode(*mode)
		case "device":
			cfg.Device = *device
		case "target":
			cfg.Target = *target
		case "port":
			cfg.Port = *port
		case "api-port":
			cfg.APIPort = *apiPort
		case "sample-rate":
			cfg.SampleRate = *sampleRate
		case "channels":
			cfg.Channels = *channels
		case "buffer-size":
			cfg.BufferSize = *bufferSize
		case "transport":
			cfg.Transport = *transport
		case "tone":
			cfg.TestTone = *tone
		case "tone-freq":
			cfg.ToneFrequency = *toneFreq
		case "audio":
			cfg.AudioFile = *audioFile
		case "output-backend":
			cfg.OutputBackend = *outputBackend
		case "no-mdns":
			cfg.NoMDNS = *noMDNS
		case "tui":
			cfg.UseTUI = *useTUI
		case "log-file":
			cfg.LogFile = *logFile
		case "verbose":
			cfg.Verbose = *verbose
		}
	})
	cfg.ListDevices = *listDevices

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Mode != ModeSender && c.Mode != ModeReceiver {
		return fmt.Errorf("invalid mode: %s", c.Mode)
	}
	if c.Transport != "tcp-pcm" {
		return fmt.Errorf("invalid transport: %s", c.Transport)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid api port: %d", c.APIPort)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > 255 {
		return fmt.Errorf("invalid channel count: %d", c.Channels)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("invalid buffer size: %d", c.BufferSize)
	}
	if c.OutputBackend != "portaudio" && c.OutputBackend != "oto" {
		return fmt.Errorf("invalid output backend: %s", c.OutputBackend)
	}
	if c.Mode == ModeSender && c.Target == "" && c.NoMDNS {
		return fmt.Errorf("sender mode requires -target when discovery is disabled")
	}
	return nil
}

// StreamConfig converts the settings into the wire format description.
func (c Config) StreamConfig() protocol.StreamConfig {
	return protocol.StreamConfig{
		SampleRate:    uint32(c.SampleRate),
		Channels:      uint16(c.Channels),
		BitsPerSample: 32,
		BufferSize:    uint32(c.BufferSize),
	}
}
