// Package config loads the client's YAML configuration file, the way
// rain loads its own: a default struct overridden by whatever a file
// at a (possibly ~-prefixed) path provides, tolerating a missing file.
package config

import (
	"fmt"
	"io/ioutil"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	yaml "gopkg.in/yaml.v2"

	"github.com/drivasperez/torrent/session"
)

// DefaultConfigPath is where Load looks when the caller does not
// override it.
const DefaultConfigPath = "~/.gorent/config.yaml"

// Config is the client's full runtime configuration.
type Config struct {
	// Port is the local TCP port advertised to trackers. gorent never
	// accepts inbound connections; this is cosmetic.
	Port uint16 `yaml:"port"`
	// MaxPeers is read from the config file but is not passed to the
	// orchestrator, which dials one session for every peer the tracker
	// returns.
	MaxPeers int `yaml:"max_peers"`
	// OutputDir is where completed/in-progress downloads are written.
	OutputDir string `yaml:"output_dir"`
	// Session carries the per-peer protocol timing and pipelining
	// bounds; a config file tunes block size or timeouts under the
	// "session" key.
	Session session.Config `yaml:"session"`
}

// Default mirrors the constants fixed elsewhere in the spec: 16 KiB
// blocks, 5-deep pipelining, a 30 s receive timeout, and a modest peer
// fan-out.
func Default() Config {
	return Config{
		Port:      6881,
		MaxPeers:  30,
		OutputDir: ".",
		Session:   session.DefaultConfig(),
	}
}

// Load reads the YAML file at path (expanding a leading ~) and
// overlays it onto Default(). A missing file is not an error: the
// default configuration is returned as-is, matching the teacher's
// "no config file yet" behavior.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: expand path: %w", err)
	}

	b, err := ioutil.ReadFile(expanded) // nolint: gosec
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", expanded, err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", expanded, err)
	}
	return cfg, nil
}
