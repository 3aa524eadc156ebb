// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Category groups rules by the subject they inspect.
type Category string

const (
	// CategoryContent rules inspect a version's content tree only.
	CategoryContent Category = "content"
	// CategoryPublish rules also inspect content but gate publication.
	CategoryPublish Category = "publish"
	// CategoryMapping rules compare content against a target class.
	CategoryMapping Category = "mapping"
	// CategoryExport rules gate export jobs (SCORM/PDF), evaluated by
	// the export pipeline outside this engine.
	CategoryExport Category = "export"
)

// RuleSeverity is the declared weight of a rule in policy files.
// Error-weight rules produce hard-blocking conflicts, warning-weight
// rules produce surfaced-but-passable conflicts, info-weight rules are
// advisory only.
type RuleSeverity string

const (
	RuleError   RuleSeverity = "error"
	RuleWarning RuleSeverity = "warning"
	RuleInfo    RuleSeverity = "info"
)

// Severity ranks a conflict. High severities are hard blockers for
// mapping and publication; medium and low are surfaced as warnings.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ConflictSeverity maps a rule's declared weight to the conflict
// severity it emits by default. Rules with graduated severities (hours
// checks) override this per finding.
func (rs RuleSeverity) ConflictSeverity() Severity {
	switch rs {
	case RuleError:
		return SeverityHigh
	case RuleWarning:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ConflictType names the aspect of the curriculum a conflict is about.
type ConflictType string

const (
	ConflictHours         ConflictType = "hours"
	ConflictLevel         ConflictType = "level"
	ConflictAge           ConflictType = "age"
	ConflictModality      ConflictType = "modality"
	ConflictResources     ConflictType = "resources"
	ConflictSkills        ConflictType = "skills"
	ConflictRubric        ConflictType = "rubric"
	ConflictAccessibility ConflictType = "accessibility"
)

// Rule is one configurable validation rule. Rules are owned by the
// policy store and are read-only for the engine; the engine never
// mutates a rule while evaluating it.
type Rule struct {
	ID       string         `yaml:"id" json:"id"`
	Category Category       `yaml:"category" json:"category"`
	Severity RuleSeverity   `yaml:"severity" json:"severity"`
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Config   map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Conflict is a single rule-violation finding. Conflicts are derived
// values: they are recomputed on every evaluation and never persisted
// as authoritative state.
type Conflict struct {
	RuleID        string       `json:"rule_id"`
	Type          ConflictType `json:"type"`
	Severity      Severity     `json:"severity"`
	Message       string       `json:"message"`
	ClassID       string       `json:"class_id,omitempty"`
	CurrentValue  string       `json:"current_value,omitempty"`
	RequiredValue string       `json:"required_value,omitempty"`
	SuggestedFix  string       `json:"suggested_fix,omitempty"`
	AutoFixable   bool         `json:"auto_fixable"`
}

// Blocking reports whether the conflict is a hard blocker.
func (c Conflict) Blocking() bool {
	return c.Severity == SeverityHigh
}

// UnmarshalYAML validates category values coming from policy files.
func (c *Category) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := Category(s)
	switch incoming {
	case CategoryContent, CategoryPublish, CategoryMapping, CategoryExport:
		*c = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Category: %q", incoming)
	}
}

// UnmarshalYAML validates severity values coming from policy files.
func (s *RuleSeverity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	incoming := RuleSeverity(raw)
	switch incoming {
	case RuleError, RuleWarning, RuleInfo:
		*s = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Severity: %q", incoming)
	}
}

// FloatConfig reads a float tunable from the rule config, falling back
// to def when the key is absent. YAML numbers decode as int or float64
// depending on their spelling, so both are accepted.
func (r Rule) FloatConfig(key string, def float64) float64 {
	v, ok := r.Config[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

// IntConfig reads an integer tunable from the rule config.
func (r Rule) IntConfig(key string, def int) int {
	v, ok := r.Config[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return def
	}
}

// BoolConfig reads a boolean tunable from the rule config.
func (r Rule) BoolConfig(key string, def bool) bool {
	v, ok := r.Config[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// StringsConfig reads a string-list tunable from the rule config.
func (r Rule) StringsConfig(key string) []string {
	v, ok := r.Config[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
