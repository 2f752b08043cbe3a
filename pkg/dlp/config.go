package dlp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Rule struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Pattern  string `yaml:"pattern" json:"pattern"`
	Mask     string `yaml:"mask" json:"mask"`
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Severity string `yaml:"severity" json:"severity"`
}

// RulesConfig is the rule file layout. With ExtendDefaults set, file rules
// are layered over DefaultRules and replace defaults of the same name.
type RulesConfig struct {
	ExtendDefaults bool   `yaml:"extend_defaults" json:"extend_defaults"`
	Rules          []Rule `yaml:"rules" json:"rules"`
}

// LoadRules reads a YAML rule file. An empty path selects DefaultRules.
func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return RulesConfig{}, fmt.Errorf("reading dlp rules: %w", err)
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, fmt.Errorf("parsing dlp rules %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return RulesConfig{}, fmt.Errorf("dlp rules %s: %w", path, err)
	}
	if cfg.ExtendDefaults {
		cfg = DefaultRules().merge(cfg.Rules)
	}
	if len(cfg.Rules) == 0 {
		return RulesConfig{}, fmt.Errorf("dlp rules %s: no rules configured", path)
	}
	return cfg, nil
}

func (c RulesConfig) validate() error {
	seen := make(map[string]struct{}, len(c.Rules))
	for i, rule := range c.Rules {
		name := strings.TrimSpace(rule.Name)
		if name == "" {
			return fmt.Errorf("rule %d has no name", i)
		}
		if strings.TrimSpace(rule.Pattern) == "" {
			return fmt.Errorf("rule %q has no pattern", name)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("rule %q declared twice", name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (c RulesConfig) merge(overrides []Rule) RulesConfig {
	index := make(map[string]int, len(c.Rules))
	out := make([]Rule, len(c.Rules))
	copy(out, c.Rules)
	for i, rule := range out {
		index[strings.ToLower(rule.Name)] = i
	}
	for _, rule := range overrides {
		if i, ok := index[strings.ToLower(rule.Name)]; ok {
			out[i] = rule
			continue
		}
		out = append(out, rule)
	}
	return RulesConfig{Rules: out}
}

// DefaultRules cover identifiers that appear in Brazilian clinical notes.
func DefaultRules() RulesConfig {
	return RulesConfig{Rules: []Rule{
		{Name: "CPF", Type: "cpf", Pattern: `\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`, Mask: "[CPF]", Enabled: true, Severity: "high"},
		{Name: "CNS", Type: "cns", Pattern: `\b[1-9]\d{2} ?\d{4} ?\d{4} ?\d{4}\b`, Mask: "[CNS]", Enabled: true, Severity: "high"},
		{Name: "Prontuario", Type: "mrn", Pattern: `(?i)\bprontu[aá]rio:?\s*n?[º°o.]?\s*\d{4,}\b`, Mask: "[PRONTUARIO]", Enabled: true, Severity: "high"},
		{Name: "DOB", Type: "dob", Pattern: `\b\d{1,2}/\d{1,2}/\d{4}\b`, Mask: "##/##/####", Enabled: true, Severity: "medium"},
		{Name: "Email", Type: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "***@***", Enabled: true, Severity: "medium"},
		{Name: "Phone", Type: "phone", Pattern: `\(\d{2}\)\s?9?\d{4}-\d{4}\b`, Mask: "(**) ****-****", Enabled: true, Severity: "medium"},
	}}
}
