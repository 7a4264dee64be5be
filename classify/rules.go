package classify

import (
	"fmt"
	"os"
	"regexp"

	"insurance_backend/core"

	"gopkg.in/yaml.v3"
)

// maxRawScore normalizes the weighted keyword score: three high-weight
// hits (or the equivalent mix) saturate confidence at 1.0.
const maxRawScore = 6.0

// TypeRule is the keyword and extraction rule set for one document
// type. Keywords are matched as lower-case substrings.
type TypeRule struct {
	Type string `yaml:"type"`

	// HighWeight keywords score +2 per match
	HighWeight []string `yaml:"highWeight"`

	// MediumWeight keywords score +1 per match
	MediumWeight []string `yaml:"mediumWeight"`

	// FieldPattern extracts the type-specific field; first capture
	// group is the value
	FieldPattern string `yaml:"fieldPattern"`

	// FieldName keys the extracted value in ExtractedData
	FieldName string `yaml:"fieldName"`
}

// Rules is the full rule set, deserializable from YAML so deployments
// can override keywords and patterns without a rebuild.
type Rules struct {
	Types []TypeRule `yaml:"types"`

	// DatePattern collects all date matches into the "dates" field
	DatePattern string `yaml:"datePattern"`

	// CommonPatterns extract type-independent fields (field name →
	// pattern with one capture group)
	CommonPatterns map[string]string `yaml:"commonPatterns"`
}

// DefaultRules returns the built-in German rule set. Type order fixes
// the tie break: the earliest type wins an equal score.
func DefaultRules() Rules {
	return Rules{
		Types: []TypeRule{
			{
				Type:         string(core.AccidentReport),
				HighWeight:   []string{"unfall", "kollision", "zusammenstoß"},
				MediumWeight: []string{"verletzung", "schaden", "unfallbericht"},
				FieldPattern: `Ort:\s*([^\n\r]+)`,
				FieldName:    "location",
			},
			{
				Type:         string(core.DamageReport),
				HighWeight:   []string{"schadensmeldung", "wasserschaden", "beschädigung"},
				MediumWeight: []string{"schaden", "defekt", "reparatur", "mangel"},
				FieldPattern: `Schadenart:\s*([^\n\r]+)`,
				FieldName:    "damageType",
			},
			{
				Type:         string(core.ContractChange),
				HighWeight:   []string{"vertragsänderung", "vertragskündigung", "vertragsanpassung"},
				MediumWeight: []string{"vertrag", "änderung", "anpassung", "kündigung"},
				FieldPattern: `Änderungsart:\s*([^\n\r]+)`,
				FieldName:    "changeType",
			},
		},
		DatePattern: `\d{2}\.\d{2}\.\d{4}`,
		CommonPatterns: map[string]string{
			"insuranceNumber": `Versicherungsnummer:\s*([A-Za-z0-9-]+)`,
		},
	}
}

// LoadRules reads a YAML rule file. An empty path returns the built-in
// defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file: %w", err)
	}
	if len(rules.Types) == 0 {
		return Rules{}, fmt.Errorf("rules file %s defines no document types", path)
	}
	return rules, nil
}

// compiledTypeRule is a TypeRule with its extraction pattern compiled.
type compiledTypeRule struct {
	docType      core.DocumentType
	highWeight   []string
	mediumWeight []string
	fieldPattern *regexp.Regexp
	fieldName    string
}

// compiledRules holds the rule set ready for matching.
type compiledRules struct {
	types          []compiledTypeRule
	datePattern    *regexp.Regexp
	commonPatterns map[string]*regexp.Regexp
}

// compileRules validates and compiles every pattern up front so
// classification never hits a pattern error mid-request.
func compileRules(rules Rules) (*compiledRules, error) {
	compiled := &compiledRules{
		commonPatterns: make(map[string]*regexp.Regexp, len(rules.CommonPatterns)),
	}

	for _, tr := range rules.Types {
		docType := core.DocumentType(tr.Type)
		if !docType.IsValid() {
			return nil, fmt.Errorf("unknown document type in rules: %q", tr.Type)
		}

		ct := compiledTypeRule{
			docType:      docType,
			highWeight:   tr.HighWeight,
			mediumWeight: tr.MediumWeight,
			fieldName:    tr.FieldName,
		}
		if tr.FieldPattern != "" {
			re, err := regexp.Compile(tr.FieldPattern)
			if err != nil {
				return nil, fmt.Errorf("field pattern for %s: %w", tr.Type, err)
			}
			ct.fieldPattern = re
		}
		compiled.types = append(compiled.types, ct)
	}

	if rules.DatePattern != "" {
		re, err := regexp.Compile(rules.DatePattern)
		if err != nil {
			return nil, fmt.Errorf("date pattern: %w", err)
		}
		compiled.datePattern = re
	}

	for name, pattern := range rules.CommonPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("common pattern %s: %w", name, err)
		}
		compiled.commonPatterns[name] = re
	}

	return compiled, nil
}
