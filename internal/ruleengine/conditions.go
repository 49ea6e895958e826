package ruleengine

import (
	"errors"
	"fmt"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

func (ec *evalContext) evaluateUserCondition(c *model.UserCondition, contextSalt string) (outcome, error) {
	ec.log.appendUserCondition(c)

	if ec.user == nil {
		ec.logMissingUser()
		return missingUser(), nil
	}

	attr := c.Attribute
	value, ok := ec.user.Attribute(attr)
	if !ok {
		ec.warn(EventMissingAttribute, fmt.Sprintf(
			"Cannot evaluate condition (%s) for setting '%s' (the User.%s attribute is missing). "+
				"You should set the User.%s attribute in order to make targeting work properly.",
			formatUserCondition(c), ec.key, attr, attr))
		return missingAttribute(attr), nil
	}

	if !c.Comparator.IsValid() {
		return outcome{}, errorf("Comparison operator is invalid.")
	}

	salt := ""
	if c.Comparator.IsSensitive() {
		salt = ec.setting.Salt()
		if salt == "" {
			return outcome{}, errorf("Config JSON salt is missing.")
		}
	}

	switch c.Comparator {
	case model.TextEquals, model.TextNotEquals,
		model.SensitiveTextEquals, model.SensitiveTextNotEquals:
		cmp, err := comparisonString(c)
		if err != nil {
			return outcome{}, err
		}
		text := ec.attributeText(c, value)
		negate := c.Comparator == model.TextNotEquals || c.Comparator == model.SensitiveTextNotEquals
		if c.Comparator.IsSensitive() {
			return matched(textEquals(HashComparisonValue(text, salt, contextSalt), cmp, negate)), nil
		}
		return matched(textEquals(text, cmp, negate)), nil

	case model.IsOneOf, model.IsNotOneOf,
		model.SensitiveIsOneOf, model.SensitiveIsNotOneOf:
		list, err := comparisonList(c)
		if err != nil {
			return outcome{}, err
		}
		text := ec.attributeText(c, value)
		negate := c.Comparator == model.IsNotOneOf || c.Comparator == model.SensitiveIsNotOneOf
		if c.Comparator.IsSensitive() {
			return matched(isOneOf(HashComparisonValue(text, salt, contextSalt), list, negate)), nil
		}
		return matched(isOneOf(text, list, negate)), nil

	case model.TextStartsWithAnyOf, model.TextNotStartsWithAnyOf,
		model.TextEndsWithAnyOf, model.TextNotEndsWithAnyOf:
		list, err := comparisonList(c)
		if err != nil {
			return outcome{}, err
		}
		text := ec.attributeText(c, value)
		startsWith := c.Comparator == model.TextStartsWithAnyOf || c.Comparator == model.TextNotStartsWithAnyOf
		negate := c.Comparator == model.TextNotStartsWithAnyOf || c.Comparator == model.TextNotEndsWithAnyOf
		return matched(startsOrEndsWithAnyOf(text, list, startsWith, negate)), nil

	case model.SensitiveTextStartsWithAnyOf, model.SensitiveTextNotStartsWithAnyOf,
		model.SensitiveTextEndsWithAnyOf, model.SensitiveTextNotEndsWithAnyOf:
		list, err := comparisonList(c)
		if err != nil {
			return outcome{}, err
		}
		text := ec.attributeText(c, value)
		startsWith := c.Comparator == model.SensitiveTextStartsWithAnyOf || c.Comparator == model.SensitiveTextNotStartsWithAnyOf
		negate := c.Comparator == model.SensitiveTextNotStartsWithAnyOf || c.Comparator == model.SensitiveTextNotEndsWithAnyOf
		ok, err := sensitiveStartsOrEndsWithAnyOf(text, list, salt, contextSalt, startsWith, negate)
		if err != nil {
			return outcome{}, err
		}
		return matched(ok), nil

	case model.ContainsAnyOf, model.NotContainsAnyOf:
		list, err := comparisonList(c)
		if err != nil {
			return outcome{}, err
		}
		text := ec.attributeText(c, value)
		return matched(containsAnyOf(text, list, c.Comparator == model.NotContainsAnyOf)), nil

	case model.SemVerIsOneOf, model.SemVerIsNotOneOf:
		list, err := comparisonList(c)
		if err != nil {
			return outcome{}, err
		}
		version, err := toSemVer(attr, value)
		if err != nil {
			return ec.invalidAttribute(c, err), nil
		}
		return matched(semVerIsOneOf(version, list, c.Comparator == model.SemVerIsNotOneOf)), nil

	case model.SemVerLess, model.SemVerLessOrEquals, model.SemVerGreater, model.SemVerGreaterOrEquals:
		cmp, err := comparisonString(c)
		if err != nil {
			return outcome{}, err
		}
		version, err := toSemVer(attr, value)
		if err != nil {
			return ec.invalidAttribute(c, err), nil
		}
		return matched(semVerRelation(version, c.Comparator, cmp)), nil

	case model.NumberEquals, model.NumberNotEquals, model.NumberLess,
		model.NumberLessOrEquals, model.NumberGreater, model.NumberGreaterOrEquals:
		cmp, err := comparisonNumber(c)
		if err != nil {
			return outcome{}, err
		}
		number, err := toNumber(attr, value)
		if err != nil {
			return ec.invalidAttribute(c, err), nil
		}
		return matched(numberRelation(number, c.Comparator, cmp)), nil

	case model.DateTimeBefore, model.DateTimeAfter:
		cmp, err := comparisonNumber(c)
		if err != nil {
			return outcome{}, err
		}
		seconds, err := toUnixSeconds(attr, value)
		if err != nil {
			return ec.invalidAttribute(c, err), nil
		}
		if c.Comparator == model.DateTimeBefore {
			return matched(seconds < cmp), nil
		}
		return matched(seconds > cmp), nil

	case model.ArrayContainsAnyOf, model.ArrayNotContainsAnyOf,
		model.SensitiveArrayContainsAnyOf, model.SensitiveArrayNotContainsAnyOf:
		list, err := comparisonList(c)
		if err != nil {
			return outcome{}, err
		}
		array, err := toStringArray(attr, value)
		if err != nil {
			return ec.invalidAttribute(c, err), nil
		}
		negate := c.Comparator == model.ArrayNotContainsAnyOf || c.Comparator == model.SensitiveArrayNotContainsAnyOf
		if c.Comparator.IsSensitive() {
			return matched(sensitiveArrayContainsAnyOf(array, list, salt, contextSalt, negate)), nil
		}
		return matched(arrayContainsAnyOf(array, list, negate)), nil
	}

	return outcome{}, errorf("Comparison operator is invalid.")
}

// attributeText returns the attribute as text, warning when a non-string
// value had to be converted.
func (ec *evalContext) attributeText(c *model.UserCondition, value any) string {
	text, isString := AttributeText(value)
	if !isString {
		ec.warn(EventAttributeConverted, fmt.Sprintf(
			"Evaluation of condition (%s) for setting '%s' may not produce the expected result "+
				"(the User.%s attribute is not a string value, thus it was automatically converted to the string value '%s'). "+
				"Please make sure that using a non-string attribute was intended.",
			formatUserCondition(c), ec.key, c.Attribute, text))
	}
	return text
}

func (ec *evalContext) invalidAttribute(c *model.UserCondition, err error) outcome {
	var ce *CoercionError
	if !errors.As(err, &ce) {
		ce = &CoercionError{Attribute: c.Attribute, Reason: err.Error()}
	}
	ec.warn(EventInvalidAttribute, fmt.Sprintf(
		"Cannot evaluate condition (%s) for setting '%s' (%s). "+
			"Please check the User.%s attribute and make sure that its value corresponds to the comparison operator.",
		formatUserCondition(c), ec.key, ce.Reason, c.Attribute))
	return invalidAttribute(ce)
}

func comparisonString(c *model.UserCondition) (string, error) {
	if c.StringValue == nil {
		return "", errorf("Comparison value is missing or invalid.")
	}
	return *c.StringValue, nil
}

func comparisonNumber(c *model.UserCondition) (float64, error) {
	if c.NumberValue == nil {
		return 0, errorf("Comparison value is missing or invalid.")
	}
	return *c.NumberValue, nil
}

func comparisonList(c *model.UserCondition) ([]string, error) {
	if c.ListValue == nil {
		return nil, errorf("Comparison value is missing or invalid.")
	}
	return c.ListValue, nil
}

func (ec *evalContext) evaluatePrerequisiteCondition(c *model.PrerequisiteCondition) (outcome, error) {
	ec.log.appendPrerequisiteCondition(c)

	prereq, ok := ec.settings[c.FlagKey]
	if !ok || prereq == nil {
		return outcome{}, errorf("Prerequisite flag is missing or invalid.")
	}

	expected := c.Value.Value()
	if !expected.IsValid() {
		return outcome{}, errorf("Comparison value is missing or invalid.")
	}
	if expected.Type() != prereq.Type {
		return outcome{}, errorf("Type mismatch between comparison value '%s' and prerequisite flag '%s'.",
			expected.String(), c.FlagKey)
	}

	*ec.visited = append(*ec.visited, ec.key)
	defer func() { *ec.visited = (*ec.visited)[:len(*ec.visited)-1] }()

	for _, k := range *ec.visited {
		if k == c.FlagKey {
			chain := append(append([]string{}, *ec.visited...), c.FlagKey)
			return outcome{}, errorf("Circular dependency detected between the following depending flags: %s.",
				formatStringList(chain, 0, " -> "))
		}
	}

	ec.log.newLine("(").increaseIndent().newLine("Evaluating prerequisite flag '" + c.FlagKey + "':")

	res, err := ec.forPrerequisite(c.FlagKey, prereq).evaluateSetting()
	if err != nil {
		return outcome{}, err
	}

	var result bool
	switch c.Comparator {
	case model.PrerequisiteEquals:
		result = res.Value.Equal(expected)
	case model.PrerequisiteNotEquals:
		result = !res.Value.Equal(expected)
	default:
		return outcome{}, errorf("Comparison operator is invalid.")
	}

	ec.log.newLine("Prerequisite flag evaluation result: '" + res.Value.String() + "'.").
		newLine("Condition (").appendPrerequisiteCondition(c).append(") evaluates to ").
		appendConditionResult(result).append(".").
		decreaseIndent().newLine(")")

	return matched(result), nil
}

func (ec *evalContext) evaluateSegmentCondition(c *model.SegmentCondition) (outcome, error) {
	segments := ec.setting.Segments()
	ec.log.appendSegmentCondition(c, segments)

	if ec.user == nil {
		ec.logMissingUser()
		return missingUser(), nil
	}

	seg := segmentAt(segments, c.Index)
	if seg == nil {
		return outcome{}, errorf("Segment reference is invalid.")
	}

	ec.log.newLine("(").increaseIndent().newLine("Evaluating segment '" + seg.Name + "':")

	segResult, err := ec.evaluateConditions(seg.ConditionList(), nil, seg.Name)
	if err != nil {
		return outcome{}, err
	}

	result := segResult
	if segResult.softErr == "" {
		switch c.Comparator {
		case model.SegmentIsIn:
		case model.SegmentIsNotIn:
			result = matched(!segResult.match)
		default:
			return outcome{}, errorf("Comparison operator is invalid.")
		}
	}

	if ec.log != nil {
		ec.log.newLine("Segment evaluation result: ")
		if segResult.softErr == "" {
			verdict := model.SegmentIsNotIn
			if segResult.match {
				verdict = model.SegmentIsIn
			}
			ec.log.append("User " + verdict.String())
		} else {
			ec.log.append(segResult.softErr)
		}
		ec.log.append(".")

		ec.log.newLine("Condition (").appendSegmentCondition(c, segments).append(")")
		if result.softErr == "" {
			ec.log.append(" evaluates to ").appendConditionResult(result.match)
		} else {
			ec.log.append(" failed to evaluate")
		}
		ec.log.append(".").decreaseIndent().newLine(")")
	}

	return result, nil
}
