// Package ruleengine evaluates settings of a config JSON document against a
// User Object: targeting rules with user, prerequisite flag and segment
// conditions, percentage options and the base value. Every evaluation can
// produce a human readable log that mirrors the decision tree.
package ruleengine

import (
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

// Request aggregates everything one evaluation needs.
type Request struct {
	// Key is the key of the evaluated setting.
	Key string

	// Setting is the definition being evaluated.
	Setting *model.Setting

	// User may be nil. Targeting rules that need a user are then skipped.
	User *user.User

	// Settings is the full settings map, used to resolve prerequisite flags.
	Settings map[string]*model.Setting

	// Default is reported in the evaluation log when evaluation fails. The
	// caller is responsible for returning it.
	Default model.Value
}

// Result is the outcome of a successful evaluation.
type Result struct {
	Value       model.Value
	VariationID string

	// MatchedTargetingRule is the rule that selected the value, if any.
	MatchedTargetingRule *model.TargetingRule

	// MatchedPercentageOption is the option that selected the value, if any.
	MatchedPercentageOption *model.PercentageOption

	// Log is the evaluation log. Empty when Info logging is disabled.
	Log string
}

// EvaluationError is a hard error that aborts the evaluation of a setting:
// malformed conditions, invalid references, type mismatches, circular
// dependencies or percentage options not covering the bucket range.
type EvaluationError struct {
	Key     string
	Message string
}

func (e *EvaluationError) Error() string {
	return e.Message
}

// outcome is the result of a condition: a match flag, or a soft error
// message (missing user, missing or invalid attribute) that makes the
// owning targeting rule be skipped.
type outcome struct {
	match   bool
	softErr string
}

func matched(b bool) outcome { return outcome{match: b} }

func (o outcome) ok() bool { return o.match && o.softErr == "" }

const missingUserMessage = "cannot evaluate, User Object is missing"

func missingUser() outcome { return outcome{softErr: missingUserMessage} }

func missingAttribute(name string) outcome {
	return outcome{softErr: "cannot evaluate, the User." + name + " attribute is missing"}
}

func invalidAttribute(err *CoercionError) outcome {
	return outcome{softErr: "cannot evaluate, " + err.Error()}
}
