// Package config loads the TOML-driven configuration for CSR reset/mask
// ranges, trigger quintets, and MCM options, adapted directly from the
// teacher's config/config.go (same BurntSushi/toml shape).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the full rvcoresim run configuration.
type Config struct {
	Hart struct {
		RegisterWidth  int    `toml:"register_width"` // 32 or 64
		SupportedModes []string `toml:"supported_modes"` // "U","S","H","M"
		HartCount      int    `toml:"hart_count"`
	} `toml:"hart"`

	Csr struct {
		Overrides []CsrOverride `toml:"override"`
		Ranges    []CsrRange    `toml:"range"`
	} `toml:"csr"`

	Trigger struct {
		Count   int             `toml:"count"`
		Indices []TriggerConfig `toml:"index"`
	} `toml:"trigger"`

	Mcm struct {
		MergeBufferLineSize int   `toml:"merge_buffer_line_size"`
		CheckWholeLine       bool  `toml:"check_whole_line"`
		EnabledPpoRules      []int `toml:"enabled_ppo_rules"`
		EnableIo             bool  `toml:"enable_io_rule"`
		Tso                  bool  `toml:"tso"`
	} `toml:"mcm"`

	Log struct {
		Level string `toml:"level"` // debug, info, warn, error
		Quiet bool   `toml:"quiet"`
	} `toml:"log"`

	Api struct {
		ListenAddr string `toml:"listen_addr"`
	} `toml:"api"`
}

// CsrOverride customizes a single CSR's reset/mask triple by number.
type CsrOverride struct {
	Number     uint16 `toml:"number"`
	Reset      uint64 `toml:"reset"`
	WriteMask  uint64 `toml:"write_mask"`
	PokeMask   uint64 `toml:"poke_mask"`
	ReadMask   uint64 `toml:"read_mask"`
	Exists     bool   `toml:"exists"`
}

// CsrRange clones a CsrOverride across [first,last] inclusive, spec.md
// §6.4's "range form that clones configuration across a numbered range".
type CsrRange struct {
	First      uint16 `toml:"first"`
	Last       uint16 `toml:"last"`
	Reset      uint64 `toml:"reset"`
	WriteMask  uint64 `toml:"write_mask"`
	PokeMask   uint64 `toml:"poke_mask"`
	ReadMask   uint64 `toml:"read_mask"`
}

// TriggerConfig carries the per-index reset/mask/poke-mask triples for the
// three trigger data registers (tdata1..3); it has no entries for tinfo or
// tcontrol.
type TriggerConfig struct {
	Index          int      `toml:"index"`
	ResetTdata1    uint64   `toml:"reset_tdata1"`
	ResetTdata2    uint64   `toml:"reset_tdata2"`
	ResetTdata3    uint64   `toml:"reset_tdata3"`
	WriteMaskTdata1 uint64  `toml:"write_mask_tdata1"`
	WriteMaskTdata2 uint64  `toml:"write_mask_tdata2"`
	WriteMaskTdata3 uint64  `toml:"write_mask_tdata3"`
	PokeMaskTdata1  uint64  `toml:"poke_mask_tdata1"`
	PokeMaskTdata2  uint64  `toml:"poke_mask_tdata2"`
	PokeMaskTdata3  uint64  `toml:"poke_mask_tdata3"`
}

// DefaultConfig returns a configuration with the defaults spec.md §6.4
// implies: RV64, M+S+U supported, no merge buffer coalescing beyond a
// single line, all PPO rules enabled except Io.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Hart.RegisterWidth = 64
	cfg.Hart.SupportedModes = []string{"U", "S", "M"}
	cfg.Hart.HartCount = 1

	cfg.Trigger.Count = 4

	cfg.Mcm.MergeBufferLineSize = 64
	cfg.Mcm.CheckWholeLine = false
	cfg.Mcm.EnabledPpoRules = nil // empty => all enabled except Io
	cfg.Mcm.EnableIo = false
	cfg.Mcm.Tso = false

	cfg.Log.Level = "info"
	cfg.Log.Quiet = false

	cfg.Api.ListenAddr = "127.0.0.1:7777"

	return cfg
}

// GetConfigPath returns the platform-specific config file path, mirroring
// the teacher's per-OS convention but under the rvcoresim app name.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "rvcoresim")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "rvcoresim")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file path.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from path, falling back to DefaultConfig
// when the file does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to the default config file path.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes c to path in TOML form.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}
	return nil
}

// ExpandRanges flattens CsrRange entries into individual CsrOverride
// entries, the "clones configuration across a numbered range" behavior
// spec.md §6.4 calls for.
func (c *Config) ExpandRanges() []CsrOverride {
	out := append([]CsrOverride(nil), c.Csr.Overrides...)
	for _, r := range c.Csr.Ranges {
		for n := r.First; n <= r.Last; n++ {
			out = append(out, CsrOverride{
				Number: n, Reset: r.Reset, WriteMask: r.WriteMask,
				PokeMask: r.PokeMask, ReadMask: r.ReadMask, Exists: true,
			})
			if n == 0xFFFF {
				break // guard against uint16 wraparound when Last == max
			}
		}
	}
	return out
}
