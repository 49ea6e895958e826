package model

// ConditionKind discriminates the variants of a Condition container.
type ConditionKind int

const (
	ConditionInvalid ConditionKind = iota
	ConditionUser
	ConditionPrerequisite
	ConditionSegment
)

// Condition is a container holding exactly one of a user condition, a
// prerequisite flag condition or a segment condition.
type Condition struct {
	User         *UserCondition         `json:"u,omitempty" yaml:"u,omitempty"`
	Prerequisite *PrerequisiteCondition `json:"p,omitempty" yaml:"p,omitempty"`
	Segment      *SegmentCondition      `json:"s,omitempty" yaml:"s,omitempty"`
}

// Kind returns the populated variant, or ConditionInvalid when zero or several
// variants are set.
func (c *Condition) Kind() ConditionKind {
	kind, n := ConditionInvalid, 0
	if c.User != nil {
		kind, n = ConditionUser, n+1
	}
	if c.Prerequisite != nil {
		kind, n = ConditionPrerequisite, n+1
	}
	if c.Segment != nil {
		kind, n = ConditionSegment, n+1
	}
	if n != 1 {
		return ConditionInvalid
	}
	return kind
}

// UserCondition compares a user attribute against a comparison value. Only one
// of StringValue, NumberValue and ListValue is meaningful for a given
// comparator (see Comparator.ValueKind).
type UserCondition struct {
	Attribute   string     `json:"a" yaml:"a"`
	Comparator  Comparator `json:"c" yaml:"c"`
	StringValue *string    `json:"s,omitempty" yaml:"s,omitempty"`
	NumberValue *float64   `json:"d,omitempty" yaml:"d,omitempty"`
	ListValue   []string   `json:"l,omitempty" yaml:"l,omitempty"`
}

// PrerequisiteCondition compares the evaluated value of another flag.
type PrerequisiteCondition struct {
	FlagKey    string                 `json:"f" yaml:"f"`
	Comparator PrerequisiteComparator `json:"c" yaml:"c"`
	Value      SettingValue           `json:"v" yaml:"v"`
}

// SegmentCondition references a segment of the document by index.
type SegmentCondition struct {
	Index      int               `json:"s" yaml:"s"`
	Comparator SegmentComparator `json:"c" yaml:"c"`
}
