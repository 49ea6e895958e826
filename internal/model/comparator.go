package model

// Comparator is the operator of a user condition. The numeric values are part
// of the wire format.
type Comparator int

const (
	IsOneOf                         Comparator = 0
	IsNotOneOf                      Comparator = 1
	ContainsAnyOf                   Comparator = 2
	NotContainsAnyOf                Comparator = 3
	SemVerIsOneOf                   Comparator = 4
	SemVerIsNotOneOf                Comparator = 5
	SemVerLess                      Comparator = 6
	SemVerLessOrEquals              Comparator = 7
	SemVerGreater                   Comparator = 8
	SemVerGreaterOrEquals           Comparator = 9
	NumberEquals                    Comparator = 10
	NumberNotEquals                 Comparator = 11
	NumberLess                      Comparator = 12
	NumberLessOrEquals              Comparator = 13
	NumberGreater                   Comparator = 14
	NumberGreaterOrEquals           Comparator = 15
	SensitiveIsOneOf                Comparator = 16
	SensitiveIsNotOneOf             Comparator = 17
	DateTimeBefore                  Comparator = 18
	DateTimeAfter                   Comparator = 19
	SensitiveTextEquals             Comparator = 20
	SensitiveTextNotEquals          Comparator = 21
	SensitiveTextStartsWithAnyOf    Comparator = 22
	SensitiveTextNotStartsWithAnyOf Comparator = 23
	SensitiveTextEndsWithAnyOf      Comparator = 24
	SensitiveTextNotEndsWithAnyOf   Comparator = 25
	SensitiveArrayContainsAnyOf     Comparator = 26
	SensitiveArrayNotContainsAnyOf  Comparator = 27
	TextEquals                      Comparator = 28
	TextNotEquals                   Comparator = 29
	TextStartsWithAnyOf             Comparator = 30
	TextNotStartsWithAnyOf          Comparator = 31
	TextEndsWithAnyOf               Comparator = 32
	TextNotEndsWithAnyOf            Comparator = 33
	ArrayContainsAnyOf              Comparator = 34
	ArrayNotContainsAnyOf           Comparator = 35
)

var comparatorTexts = [...]string{
	IsOneOf:                         "IS ONE OF",
	IsNotOneOf:                      "IS NOT ONE OF",
	ContainsAnyOf:                   "CONTAINS ANY OF",
	NotContainsAnyOf:                "NOT CONTAINS ANY OF",
	SemVerIsOneOf:                   "IS ONE OF",
	SemVerIsNotOneOf:                "IS NOT ONE OF",
	SemVerLess:                      "<",
	SemVerLessOrEquals:              "<=",
	SemVerGreater:                   ">",
	SemVerGreaterOrEquals:           ">=",
	NumberEquals:                    "=",
	NumberNotEquals:                 "!=",
	NumberLess:                      "<",
	NumberLessOrEquals:              "<=",
	NumberGreater:                   ">",
	NumberGreaterOrEquals:           ">=",
	SensitiveIsOneOf:                "IS ONE OF",
	SensitiveIsNotOneOf:             "IS NOT ONE OF",
	DateTimeBefore:                  "BEFORE",
	DateTimeAfter:                   "AFTER",
	SensitiveTextEquals:             "EQUALS",
	SensitiveTextNotEquals:          "NOT EQUALS",
	SensitiveTextStartsWithAnyOf:    "STARTS WITH ANY OF",
	SensitiveTextNotStartsWithAnyOf: "NOT STARTS WITH ANY OF",
	SensitiveTextEndsWithAnyOf:      "ENDS WITH ANY OF",
	SensitiveTextNotEndsWithAnyOf:   "NOT ENDS WITH ANY OF",
	SensitiveArrayContainsAnyOf:     "ARRAY CONTAINS ANY OF",
	SensitiveArrayNotContainsAnyOf:  "ARRAY NOT CONTAINS ANY OF",
	TextEquals:                      "EQUALS",
	TextNotEquals:                   "NOT EQUALS",
	TextStartsWithAnyOf:             "STARTS WITH ANY OF",
	TextNotStartsWithAnyOf:          "NOT STARTS WITH ANY OF",
	TextEndsWithAnyOf:               "ENDS WITH ANY OF",
	TextNotEndsWithAnyOf:            "NOT ENDS WITH ANY OF",
	ArrayContainsAnyOf:              "ARRAY CONTAINS ANY OF",
	ArrayNotContainsAnyOf:           "ARRAY NOT CONTAINS ANY OF",
}

// IsValid reports whether c is a known comparator.
func (c Comparator) IsValid() bool {
	return c >= 0 && int(c) < len(comparatorTexts)
}

// String returns the operator text used in evaluation logs.
func (c Comparator) String() string {
	if !c.IsValid() {
		return "<invalid operator>"
	}
	return comparatorTexts[c]
}

// IsSensitive reports whether the comparison values of c are salted hashes.
func (c Comparator) IsSensitive() bool {
	switch c {
	case SensitiveIsOneOf, SensitiveIsNotOneOf,
		SensitiveTextEquals, SensitiveTextNotEquals,
		SensitiveTextStartsWithAnyOf, SensitiveTextNotStartsWithAnyOf,
		SensitiveTextEndsWithAnyOf, SensitiveTextNotEndsWithAnyOf,
		SensitiveArrayContainsAnyOf, SensitiveArrayNotContainsAnyOf:
		return true
	default:
		return false
	}
}

// ComparisonValueKind tells which comparison value field a comparator reads.
type ComparisonValueKind int

const (
	ComparisonValueNone ComparisonValueKind = iota
	ComparisonValueString
	ComparisonValueNumber
	ComparisonValueList
)

// ValueKind returns the comparison value kind expected by c.
func (c Comparator) ValueKind() ComparisonValueKind {
	switch c {
	case SemVerLess, SemVerLessOrEquals, SemVerGreater, SemVerGreaterOrEquals,
		SensitiveTextEquals, SensitiveTextNotEquals, TextEquals, TextNotEquals:
		return ComparisonValueString
	case NumberEquals, NumberNotEquals, NumberLess, NumberLessOrEquals,
		NumberGreater, NumberGreaterOrEquals, DateTimeBefore, DateTimeAfter:
		return ComparisonValueNumber
	default:
		if c.IsValid() {
			return ComparisonValueList
		}
		return ComparisonValueNone
	}
}

// PrerequisiteComparator is the operator of a prerequisite flag condition.
type PrerequisiteComparator int

const (
	PrerequisiteEquals    PrerequisiteComparator = 0
	PrerequisiteNotEquals PrerequisiteComparator = 1
)

func (c PrerequisiteComparator) String() string {
	switch c {
	case PrerequisiteEquals:
		return "EQUALS"
	case PrerequisiteNotEquals:
		return "NOT EQUALS"
	default:
		return "<invalid operator>"
	}
}

// SegmentComparator is the operator of a segment condition.
type SegmentComparator int

const (
	SegmentIsIn    SegmentComparator = 0
	SegmentIsNotIn SegmentComparator = 1
)

func (c SegmentComparator) String() string {
	switch c {
	case SegmentIsIn:
		return "IS IN SEGMENT"
	case SegmentIsNotIn:
		return "IS NOT IN SEGMENT"
	default:
		return "<invalid operator>"
	}
}
