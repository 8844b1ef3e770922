// Package config loads the TOML configuration and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/vidflut/internal/codec"
	"github.com/llehouerou/vidflut/internal/protocol"
)

const (
	appName = "vidflut"

	// DefaultPort is the usual Pixelflut port.
	DefaultPort = "1337"
)

var (
	ErrInvalid       = errors.New("invalid config")
	ErrNoInput       = errors.New("no input file specified")
	ErrNoTarget      = errors.New("host or target must be specified")
	ErrUnknownTarget = errors.New("target not found in config")
)

type Config struct {
	Input string `koanf:"input"`

	Host     string `koanf:"host"`
	Target   string `koanf:"target"` // name of a [targets.<name>] entry
	Protocol string `koanf:"protocol"`
	Canvas   int    `koanf:"canvas"`
	XOffset  int    `koanf:"x_offset"`
	YOffset  int    `koanf:"y_offset"`

	Width  int     `koanf:"width"`  // 0 keeps the aspect ratio
	Height int     `koanf:"height"` // 0 keeps the aspect ratio
	FPS    float64 `koanf:"fps"`    // 0 uses the source rate

	CompressionLevel     string `koanf:"compression_level"` // preset name or pixels per second / 1024
	CompressionAlgorithm string `koanf:"compression_algorithm"`
	AOTFrameGroupSize    int    `koanf:"aot_frame_group_size"`
	CompressThreads      int    `koanf:"compress_threads"`
	SendThreads          int    `koanf:"send_threads"`
	SendBatchSize        int    `koanf:"send_batch_size"`

	JIT     bool `koanf:"jit"`
	Loop    bool `koanf:"loop"`
	Debug   bool `koanf:"debug"`
	NoCache bool `koanf:"nocache"`

	CacheDir    string `koanf:"cache_dir"`
	LogLevel    string `koanf:"log_level"`
	MetricsAddr string `koanf:"metrics_addr"` // e.g. ":9090"; empty disables the endpoint

	Targets map[string]Target `koanf:"targets"`
}

// Target is a named canvas server.
type Target struct {
	Host     string `koanf:"host"`
	Protocol string `koanf:"protocol"`
	Canvas   int    `koanf:"canvas"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Protocol:             protocol.Plaintext.String(),
		CompressionLevel:     codec.PresetMedium.String(),
		CompressionAlgorithm: string(codec.AlgorithmThreshold),
		AOTFrameGroupSize:    64,
		CompressThreads:      runtime.NumCPU(),
		SendThreads:          8,
		SendBatchSize:        400,
		Loop:                 true,
		LogLevel:             "info",
	}
}

// Load reads the config files and applies overrides (koanf keys, e.g.
// "send_threads") on top.
func Load(overrides map[string]any) (*Config, error) {
	return LoadFrom(getConfigPaths(), overrides)
}

// LoadFrom is Load with explicit config file paths, lowest priority first.
// Missing files are skipped.
func LoadFrom(paths []string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Input = expandPath(cfg.Input)
	cfg.CacheDir = expandPath(cfg.CacheDir)

	return cfg, nil
}

// Path returns the user config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.toml")
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/vidflut/config.toml
		Path(),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate checks everything that can be checked before extraction starts.
func (c *Config) Validate() error {
	switch {
	case c.Width < 0:
		return fmt.Errorf("%w: width must be positive", ErrInvalid)
	case c.Height < 0:
		return fmt.Errorf("%w: height must be positive", ErrInvalid)
	case c.FPS < 0:
		return fmt.Errorf("%w: fps must be greater than 0", ErrInvalid)
	case c.CompressThreads <= 0:
		return fmt.Errorf("%w: compress_threads must be greater than 0", ErrInvalid)
	case c.SendThreads <= 0:
		return fmt.Errorf("%w: send_threads must be greater than 0", ErrInvalid)
	case c.SendBatchSize <= 0:
		return fmt.Errorf("%w: send_batch_size must be greater than 0", ErrInvalid)
	case c.AOTFrameGroupSize <= 0:
		return fmt.Errorf("%w: aot_frame_group_size must be greater than 0", ErrInvalid)
	case c.Canvas < 0 || c.Canvas > 255:
		return fmt.Errorf("%w: canvas must be between 0 and 255", ErrInvalid)
	case c.Host == "" && c.Target == "":
		return ErrNoTarget
	}

	if err := c.validateInput(); err != nil {
		return err
	}

	if c.Target != "" {
		t, ok := c.Targets[c.Target]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTarget, c.Target)
		}
		if err := t.validate(c.Target); err != nil {
			return err
		}
	}

	if _, err := c.WireProtocol(); err != nil {
		return err
	}
	alg, err := c.Algorithm()
	if err != nil {
		return err
	}
	level, err := c.Level()
	if err != nil {
		return err
	}
	if alg == codec.AlgorithmThreshold && level.IsNumeric() {
		return fmt.Errorf("%w: the threshold algorithm needs a preset, got %s", codec.ErrInvalidLevel, level)
	}
	return nil
}

func (c *Config) validateInput() error {
	if c.Input == "" {
		return ErrNoInput
	}
	if _, err := os.Stat(c.Input); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: input file '%s' does not exist", ErrInvalid, c.Input)
		}
		return err
	}
	return nil
}

func (t Target) validate(name string) error {
	switch {
	case t.Host == "":
		return fmt.Errorf("%w: target %q has no host", ErrNoTarget, name)
	case t.Canvas < 0 || t.Canvas > 255:
		return fmt.Errorf("%w: target %q canvas must be between 0 and 255", ErrInvalid, name)
	}
	if t.Protocol != "" {
		if _, err := protocol.Parse(t.Protocol); err != nil {
			return fmt.Errorf("target %q: %w", name, err)
		}
	}
	return nil
}

// ResolveTarget replaces the connection settings by those of the named
// target, if one is set.
func (c *Config) ResolveTarget() error {
	if c.Target == "" {
		return nil
	}
	t, ok := c.Targets[c.Target]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, c.Target)
	}
	if err := t.validate(c.Target); err != nil {
		return err
	}
	c.Host = t.Host
	if t.Protocol != "" {
		c.Protocol = t.Protocol
	}
	c.Canvas = t.Canvas
	return nil
}

// Level returns the parsed compression level.
func (c *Config) Level() (codec.Level, error) {
	return codec.ParseLevel(c.CompressionLevel)
}

// Algorithm returns the parsed compression algorithm.
func (c *Config) Algorithm() (codec.Algorithm, error) {
	return codec.ParseAlgorithm(c.CompressionAlgorithm)
}

// WireProtocol returns the parsed protocol.
func (c *Config) WireProtocol() (protocol.Protocol, error) {
	return protocol.Parse(c.Protocol)
}

// Encoder returns the pixel encoder for this stream.
func (c *Config) Encoder() (protocol.Encoder, error) {
	p, err := c.WireProtocol()
	if err != nil {
		return protocol.Encoder{}, err
	}
	return protocol.Encoder{
		Protocol: p,
		Canvas:   uint8(c.Canvas), //nolint:gosec // validated to 0..255
		OffsetX:  c.XOffset,
		OffsetY:  c.YOffset,
	}, nil
}

// Addr returns the host with the default Pixelflut port added when missing.
func (c *Config) Addr() string {
	if c.Host == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.Host); err == nil {
		return c.Host
	}
	return net.JoinHostPort(strings.Trim(c.Host, "[]"), DefaultPort)
}
