package model

// RedirectMode tells the fetcher how to treat the base URL advertised by a
// config JSON document.
type RedirectMode int

const (
	NoRedirect     RedirectMode = 0
	ShouldRedirect RedirectMode = 1
	ForceRedirect  RedirectMode = 2
)

// Preferences holds the document-level settings.
type Preferences struct {
	BaseURL  string       `json:"u,omitempty" yaml:"u,omitempty"`
	Redirect RedirectMode `json:"r" yaml:"r"`
	Salt     string       `json:"s,omitempty" yaml:"s,omitempty"`
}

// Setting is the full definition of one feature flag or setting.
type Setting struct {
	Type                       SettingType        `json:"t" yaml:"t"`
	PercentageOptionsAttribute string             `json:"a,omitempty" yaml:"a,omitempty"`
	Value                      SettingValue       `json:"v" yaml:"v"`
	VariationID                string             `json:"i,omitempty" yaml:"i,omitempty"`
	TargetingRules             []TargetingRule    `json:"r,omitempty" yaml:"r,omitempty"`
	PercentageOptions          []PercentageOption `json:"p,omitempty" yaml:"p,omitempty"`

	// Back-references into the owning document, bound by Config.Fixup.
	salt     string
	segments []Segment
}

// Salt returns the document-level salt used by sensitive comparators.
func (s *Setting) Salt() string { return s.salt }

// Segments returns the document-level segment list.
func (s *Setting) Segments() []Segment { return s.segments }

// ServedValue is the simple THEN part of a targeting rule.
type ServedValue struct {
	Value       SettingValue `json:"v" yaml:"v"`
	VariationID string       `json:"i,omitempty" yaml:"i,omitempty"`
}

// TargetingRule is an AND-group of conditions plus a consequence: either a
// served value or a list of percentage options.
type TargetingRule struct {
	Conditions        []Condition        `json:"c,omitempty" yaml:"c,omitempty"`
	ServedValue       *ServedValue       `json:"s,omitempty" yaml:"s,omitempty"`
	PercentageOptions []PercentageOption `json:"p,omitempty" yaml:"p,omitempty"`
}

// PercentageOption is one slice of a percentage-based rollout.
type PercentageOption struct {
	Percentage  int64        `json:"p" yaml:"p"`
	Value       SettingValue `json:"v" yaml:"v"`
	VariationID string       `json:"i,omitempty" yaml:"i,omitempty"`
}

// Segment is a named, reusable AND-group of user conditions.
type Segment struct {
	Name       string          `json:"n" yaml:"n"`
	Conditions []UserCondition `json:"r,omitempty" yaml:"r,omitempty"`

	conditions []Condition
}

// ConditionList returns the segment conditions wrapped as condition
// containers, so they can be evaluated like targeting rule conditions.
func (s *Segment) ConditionList() []Condition {
	if s.conditions == nil && len(s.Conditions) > 0 {
		// Not fixed up: build a private copy.
		return wrapUserConditions(s.Conditions)
	}
	return s.conditions
}

func wrapUserConditions(conds []UserCondition) []Condition {
	list := make([]Condition, len(conds))
	for i := range conds {
		list[i] = Condition{User: &conds[i]}
	}
	return list
}
