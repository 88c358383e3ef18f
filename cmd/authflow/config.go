package main

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/MrEthical07/authflow"
)

// loadConfig decodes the TOML file at path over the library defaults and
// validates the result. An empty path yields the defaults.
func loadConfig(path string) (authflow.Config, error) {
	cfg := authflow.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		fmt.Fprintf(os.Stderr, "authflow: ignoring unknown config keys: %v\n", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// writeConfig writes cfg as TOML.
func writeConfig(w io.Writer, cfg authflow.Config) error {
	fmt.Fprintln(w, "# authflow effective configuration")
	return toml.NewEncoder(w).Encode(cfg)
}
