package matcher

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/spf13/viper"
	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
)

var (
	secretsOnce   sync.Once
	secretsConfig gitleaksconfig.Config
	secretsErr    error
)

// loadSecretRules translates the gitleaks default rule set once per process.
func loadSecretRules() (gitleaksconfig.Config, error) {
	secretsOnce.Do(func() {
		v := viper.New()
		v.SetConfigType("toml")
		if err := v.ReadConfig(bytes.NewBufferString(gitleaksconfig.DefaultConfig)); err != nil {
			secretsErr = fmt.Errorf("failed to read built-in secret rules: %w", err)
			return
		}

		var vc gitleaksconfig.ViperConfig
		if err := v.Unmarshal(&vc); err != nil {
			secretsErr = fmt.Errorf("failed to decode built-in secret rules: %w", err)
			return
		}

		secretsConfig, secretsErr = vc.Translate()
		if secretsErr != nil {
			secretsErr = fmt.Errorf("failed to translate built-in secret rules: %w", secretsErr)
		}
	})
	return secretsConfig, secretsErr
}

// secretDetector wraps a gitleaks detector for line-by-line use.
// gitleaks does not document a Detector as safe for concurrent use, and
// Detect updates its scanned-byte counter, so each scan builds its own
// detector from the shared rule set and uses it from one goroutine.
type secretDetector struct {
	detector *detect.Detector
}

func newSecretDetector() (*secretDetector, error) {
	cfg, err := loadSecretRules()
	if err != nil {
		return nil, err
	}
	return &secretDetector{detector: detect.NewDetector(cfg)}, nil
}

// secretFinding is one gitleaks finding on a line.
type secretFinding struct {
	ruleID string
	match  string
}

// findLine returns the findings on a single line, sorted by rule ID.
// gitleaks evaluates rules in map order, so sorting keeps output stable.
func (s *secretDetector) findLine(line string) []secretFinding {
	findings := s.detector.DetectString(line)
	out := make([]secretFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, secretFinding{ruleID: f.RuleID, match: f.Match})
	}
	slices.SortFunc(out, func(a, b secretFinding) int {
		return cmp.Or(cmp.Compare(a.ruleID, b.ruleID), cmp.Compare(a.match, b.match))
	})
	return out
}
