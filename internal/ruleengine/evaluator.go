package ruleengine

import (
	"fmt"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

// evaluateSetting applies, in order: the targeting rules, the top-level
// percentage options and finally the base value.
func (ec *evalContext) evaluateSetting() (Result, error) {
	s := ec.setting

	if len(s.TargetingRules) > 0 {
		res, ok, err := ec.evaluateTargetingRules(s.TargetingRules)
		if err != nil || ok {
			return res, err
		}
	}

	if len(s.PercentageOptions) > 0 {
		res, ok, err := ec.evaluatePercentageOptions(s.PercentageOptions, nil)
		if err != nil || ok {
			return res, err
		}
	}

	v, err := ec.settingValue(s.Value)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: v, VariationID: s.VariationID}, nil
}

func (ec *evalContext) evaluateTargetingRules(rules []model.TargetingRule) (Result, bool, error) {
	ec.log.newLine("Evaluating targeting rules and applying the first match if any:")

	for i := range rules {
		rule := &rules[i]

		out, err := ec.evaluateConditions(rule.Conditions, rule, ec.key)
		if err != nil {
			return Result{}, false, err
		}
		if !out.ok() {
			if out.softErr != "" {
				ec.log.increaseIndent().newLine(targetingRuleIgnored).decreaseIndent()
			}
			continue
		}

		if rule.ServedValue != nil {
			v, err := ec.settingValue(rule.ServedValue.Value)
			if err != nil {
				return Result{}, false, err
			}
			return Result{
				Value:                v,
				VariationID:          rule.ServedValue.VariationID,
				MatchedTargetingRule: rule,
			}, true, nil
		}

		if len(rule.PercentageOptions) == 0 {
			return Result{}, false, errorf("Targeting rule THEN part is missing or invalid.")
		}

		ec.log.increaseIndent()
		res, ok, err := ec.evaluatePercentageOptions(rule.PercentageOptions, rule)
		if err != nil {
			return Result{}, false, err
		}
		if ok {
			ec.log.decreaseIndent()
			return res, true, nil
		}
		ec.log.newLine(targetingRuleIgnored).decreaseIndent()
	}

	return Result{}, false, nil
}

// evaluatePercentageOptions selects an option by the sticky bucket of the
// percentage attribute. It reports false when the user or the attribute is
// missing; the caller then moves on.
func (ec *evalContext) evaluatePercentageOptions(options []model.PercentageOption, rule *model.TargetingRule) (Result, bool, error) {
	if ec.user == nil {
		ec.log.newLine("Skipping % options because the User Object is missing.")
		ec.logMissingUser()
		return Result{}, false, nil
	}

	attr := ec.setting.PercentageOptionsAttribute
	var attrValue any
	if attr == "" {
		attr = "Identifier"
		attrValue = ec.user.Identifier
	} else if v, ok := ec.user.Lookup(attr); ok {
		attrValue = v
	}

	if attrValue == nil {
		ec.log.newLine("Skipping % options because the User." + attr + " attribute is missing.")
		if !ec.warned.missingAttribute {
			ec.warned.missingAttribute = true
			ec.warn(EventMissingAttribute, fmt.Sprintf(
				"Cannot evaluate %% options for setting '%s' (the User.%s attribute is missing). "+
					"You should set the User.%s attribute in order to make targeting work properly.",
				ec.key, attr, attr))
		}
		return Result{}, false, nil
	}

	ec.log.newLine("Evaluating % options based on the User." + attr + " attribute:")

	text, _ := AttributeText(attrValue)
	bucket := PercentageBucket(ec.key, text)
	ec.log.newLine(fmt.Sprintf(
		"- Computing hash in the [0..99] range from User.%s => %d (this value is sticky and consistent across all SDKs)",
		attr, bucket))

	var cumulative int64
	for i := range options {
		opt := &options[i]
		cumulative += opt.Percentage
		if int64(bucket) >= cumulative {
			continue
		}

		v, err := ec.settingValue(opt.Value)
		if err != nil {
			return Result{}, false, err
		}
		ec.log.newLine(fmt.Sprintf("- Hash value %d selects %% option %d (%d%%), '%s'.",
			bucket, i+1, opt.Percentage, v.String()))

		return Result{
			Value:                   v,
			VariationID:             opt.VariationID,
			MatchedTargetingRule:    rule,
			MatchedPercentageOption: opt,
		}, true, nil
	}

	return Result{}, false, errorf("Sum of percentage option percentages is less than 100.")
}

// evaluateConditions evaluates an AND group left to right and stops at the
// first condition that does not match. rule is nil for segment conditions;
// contextSalt is the setting key for targeting rules and the segment name for
// segments.
func (ec *evalContext) evaluateConditions(conds []model.Condition, rule *model.TargetingRule, contextSalt string) (outcome, error) {
	out := matched(true)
	newLineBeforeThen := false

	ec.log.newLine("- ")
	for i := range conds {
		cond := &conds[i]

		if i == 0 {
			ec.log.append("IF ").increaseIndent()
		} else {
			ec.log.increaseIndent().newLine("AND ")
		}

		var err error
		switch cond.Kind() {
		case model.ConditionUser:
			out, err = ec.evaluateUserCondition(cond.User, contextSalt)
			newLineBeforeThen = len(conds) > 1
		case model.ConditionPrerequisite:
			out, err = ec.evaluatePrerequisiteCondition(cond.Prerequisite)
			newLineBeforeThen = true
		case model.ConditionSegment:
			out, err = ec.evaluateSegmentCondition(cond.Segment)
			newLineBeforeThen = out.softErr != missingUserMessage || len(conds) > 1
		default:
			err = errorf("Condition is missing or invalid.")
		}
		if err != nil {
			return outcome{}, err
		}

		success := out.ok()
		if rule == nil || len(conds) > 1 {
			ec.log.appendConditionConsequence(success)
		}
		ec.log.decreaseIndent()

		if !success {
			break
		}
	}

	if rule != nil {
		ec.log.appendTargetingRuleConsequence(rule, out, newLineBeforeThen)
	}
	return out, nil
}

// settingValue unwraps a served value and checks it against the declared
// setting type.
func (ec *evalContext) settingValue(sv model.SettingValue) (model.Value, error) {
	t := ec.setting.Type
	if !t.IsValid() {
		return model.InvalidValue(), errorf("Setting type is invalid.")
	}
	v := sv.Value()
	if v.Type() != t {
		return model.InvalidValue(), errorf("Setting value is not of the expected type %s.", t)
	}
	return v, nil
}
