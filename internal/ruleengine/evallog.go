package ruleengine

import (
	"strconv"
	"strings"
	"time"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

const (
	logIndent            = "  "
	stringListMaxLength  = 10
	invalidReference     = "<invalid reference>"
	hashedValue          = "<hashed value>"
	targetingRuleIgnored = "The current targeting rule is ignored and the evaluation continues with the next rule."
)

// evalLog builds the human readable evaluation log. A nil *evalLog is valid
// and discards everything, so callers never need to check whether logging is
// enabled.
type evalLog struct {
	sb     strings.Builder
	indent int
}

func (l *evalLog) String() string {
	if l == nil {
		return ""
	}
	return l.sb.String()
}

func (l *evalLog) resetIndent() *evalLog {
	if l != nil {
		l.indent = 0
	}
	return l
}

func (l *evalLog) increaseIndent() *evalLog {
	if l != nil {
		l.indent++
	}
	return l
}

func (l *evalLog) decreaseIndent() *evalLog {
	if l != nil && l.indent > 0 {
		l.indent--
	}
	return l
}

// newLine starts a new line at the current indentation and appends text.
func (l *evalLog) newLine(text string) *evalLog {
	if l == nil {
		return nil
	}
	l.sb.WriteByte('\n')
	l.sb.WriteString(strings.Repeat(logIndent, l.indent))
	l.sb.WriteString(text)
	return l
}

func (l *evalLog) append(text string) *evalLog {
	if l != nil {
		l.sb.WriteString(text)
	}
	return l
}

func (l *evalLog) appendConditionResult(result bool) *evalLog {
	return l.append(strconv.FormatBool(result))
}

func (l *evalLog) appendConditionConsequence(result bool) *evalLog {
	l.append(" => ").appendConditionResult(result)
	if !result {
		l.append(", skipping the remaining AND conditions")
	}
	return l
}

func (l *evalLog) appendUserCondition(c *model.UserCondition) *evalLog {
	if l == nil {
		return nil
	}
	return l.append(formatUserCondition(c))
}

func (l *evalLog) appendPrerequisiteCondition(c *model.PrerequisiteCondition) *evalLog {
	if l == nil {
		return nil
	}
	return l.append(formatPrerequisiteCondition(c))
}

func (l *evalLog) appendSegmentCondition(c *model.SegmentCondition, segments []model.Segment) *evalLog {
	if l == nil {
		return nil
	}
	name := invalidReference
	if seg := segmentAt(segments, c.Index); seg != nil {
		name = seg.Name
	}
	return l.append("User " + c.Comparator.String() + " '" + name + "'")
}

// appendTargetingRuleConsequence writes the THEN part of a rule and its
// outcome: a match, no match or the soft error that stopped the rule.
func (l *evalLog) appendTargetingRuleConsequence(rule *model.TargetingRule, out outcome, onNewLine bool) *evalLog {
	if l == nil {
		return nil
	}
	l.increaseIndent()
	if onNewLine {
		l.newLine("")
	} else {
		l.append(" ")
	}
	l.append("THEN")
	if rule.ServedValue != nil {
		l.append(" '" + rule.ServedValue.Value.Value().String() + "'")
	} else {
		l.append(" % options")
	}
	l.append(" => ")
	switch {
	case out.softErr != "":
		l.append(out.softErr)
	case out.match:
		l.append("MATCH, applying rule")
	default:
		l.append("no match")
	}
	return l.decreaseIndent()
}

func formatUserCondition(c *model.UserCondition) string {
	op := c.Comparator.String()
	prefix := "User." + c.Attribute + " " + op + " "

	switch c.Comparator.ValueKind() {
	case model.ComparisonValueString:
		if c.StringValue == nil {
			return prefix + model.InvalidValuePlaceholder
		}
		if c.Comparator.IsSensitive() {
			return prefix + "'" + hashedValue + "'"
		}
		return prefix + "'" + *c.StringValue + "'"

	case model.ComparisonValueNumber:
		if c.NumberValue == nil {
			return prefix + model.InvalidValuePlaceholder
		}
		text := "'" + model.FormatNumber(*c.NumberValue) + "'"
		if c.Comparator == model.DateTimeBefore || c.Comparator == model.DateTimeAfter {
			ms := int64(*c.NumberValue * 1000)
			text += " (" + time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z") + " UTC)"
		}
		return prefix + text

	case model.ComparisonValueList:
		if c.ListValue == nil {
			return prefix + model.InvalidValuePlaceholder
		}
		if c.Comparator.IsSensitive() {
			n := len(c.ListValue)
			return prefix + "[<" + strconv.Itoa(n) + " hashed " + pluralValue(n) + ">]"
		}
		return prefix + "[" + formatStringList(c.ListValue, stringListMaxLength, ", ") + "]"

	default:
		return prefix + model.InvalidValuePlaceholder
	}
}

func formatPrerequisiteCondition(c *model.PrerequisiteCondition) string {
	return "Flag '" + c.FlagKey + "' " + c.Comparator.String() + " '" + c.Value.Value().String() + "'"
}

// formatStringList renders items as quoted, separated values. With a positive
// limit, items beyond it are summarized by a "... <N more values>" suffix.
func formatStringList(items []string, limit int, sep string) string {
	var sb strings.Builder
	n := len(items)
	if limit > 0 && n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString("'" + items[i] + "'")
	}
	if rest := len(items) - n; rest > 0 {
		sb.WriteString(", ... <" + strconv.Itoa(rest) + " more " + pluralValue(rest) + ">")
	}
	return sb.String()
}

func pluralValue(n int) string {
	if n == 1 {
		return "value"
	}
	return "values"
}

func segmentAt(segments []model.Segment, index int) *model.Segment {
	if index < 0 || index >= len(segments) {
		return nil
	}
	return &segments[index]
}
