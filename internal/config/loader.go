package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	regexp "github.com/wasilibs/go-re2"
	"gopkg.in/yaml.v3"
)

// DefaultRulesFile is the rule document name searched for when --config is omitted.
const DefaultRulesFile = ".reposcan.yaml"

// BundledRulesName is the Source recorded for the embedded sample rules.
const BundledRulesName = "(bundled)"

//go:embed templates/rules.yaml
var bundledRules []byte

// BundledRules returns the sample rule document shipped with the binary.
// `reposcan init` writes it to disk and scans fall back to it.
func BundledRules() []byte {
	return bytes.Clone(bundledRules)
}

// DefaultRules parses the bundled sample rules.
func DefaultRules() (*ScanConfig, error) {
	sc, err := ParseRules(bundledRules, ".yaml")
	if err != nil {
		return nil, err
	}
	sc.Source = BundledRulesName
	return sc, nil
}

// LoadRules reads a rule document from path.
// The format is chosen by extension: .toml is TOML, .json is JSON and
// anything else is YAML.
// A missing file returns ErrConfigNotFound; a malformed one ErrInvalidRules.
func LoadRules(path string) (*ScanConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	sc, err := ParseRules(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Source = path
	return sc, nil
}

// ParseRules decodes and validates a rule document.
// ext selects the decoder: ".toml" is TOML, ".json" is JSON and anything
// else is YAML.
func ParseRules(data []byte, ext string) (*ScanConfig, error) {
	var (
		sc      ScanConfig
		present func(key string) bool
	)

	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &sc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
		present = func(key string) bool { return md.IsDefined(key) }
	case ".json":
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
		present = func(key string) bool {
			_, ok := raw[key]
			return ok
		}
	default:
		// Decode twice: once generically to see which top-level keys exist,
		// once into the typed struct.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRules, err)
		}
		present = func(key string) bool {
			_, ok := raw[key]
			return ok
		}
	}

	for _, key := range []string{"categories", "file_extensions"} {
		if !present(key) {
			return nil, fmt.Errorf("%w: missing required key %q", ErrInvalidRules, key)
		}
	}

	if sc.Categories == nil {
		sc.Categories = make(map[string]Category)
	}
	sc.normalize()

	if err := sc.check(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// check verifies modes and that every pattern compiles.
func (sc *ScanConfig) check() error {
	for _, name := range sc.CategoryNames() {
		c := sc.Categories[name]
		switch c.Mode {
		case ModeRegex, ModeLiteral, ModeWord:
		default:
			return fmt.Errorf("%w: category %q: unknown mode %q", ErrInvalidRules, name, c.Mode)
		}
		for i, expr := range c.Expressions() {
			if _, err := regexp.Compile(expr); err != nil {
				return fmt.Errorf("%w: category %q: pattern %q: %w", ErrInvalidRules, name, c.Patterns[i], err)
			}
		}
	}
	for _, p := range sc.IgnoreLinePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("%w: ignore pattern %q: %w", ErrInvalidRules, p, err)
		}
	}
	return nil
}

// FindRulesFile searches for the rule document in the following order:
// 1. If rulesPath is specified, use it directly
// 2. Look for .reposcan.yaml in the current directory
// 3. Look for rules.yaml in the XDG config directory
// 4. Look for .reposcan.yaml in the user's home directory
//
// Returns the path if found, or empty string if not found.
func FindRulesFile(rulesPath string) string {
	if rulesPath != "" {
		if _, err := os.Stat(rulesPath); err == nil {
			return rulesPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultRulesFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "rules.yaml"))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultRulesFile))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}
