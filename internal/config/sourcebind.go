package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// sourceBindDoc is the on-disk shape of configs/sourcebind.toml: a
// flat table of server ID to source address, kept independent of the
// YAML proxy declarations so an operator can override outbound
// probe source addresses per environment without touching the main
// config.
type sourceBindDoc struct {
	Sources map[string]string `toml:"sources"`
}

// LoadSourceBindOverrides reads the TOML source-bind overlay at path.
// A missing file is not an error — it just means no overrides apply.
func LoadSourceBindOverrides(path string) (SourceBindOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read source-bind overlay: %w", err)
	}

	var doc sourceBindDoc
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("parse source-bind overlay: %w", err)
	}
	return SourceBindOverrides(doc.Sources), nil
}
