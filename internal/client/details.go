package client

import (
	"time"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

// DetailsData describes how an evaluation reached its value.
type DetailsData struct {
	Key         string
	VariationID string
	User        *user.User

	// IsDefaultValue is set when the caller's default was returned.
	IsDefaultValue bool
	// Error explains why the default was returned.
	Error error

	// FetchTime is when the config used for the evaluation was downloaded.
	FetchTime time.Time

	MatchedTargetingRule    *model.TargetingRule
	MatchedPercentageOption *model.PercentageOption

	// EvaluationLog is the decision trace; empty when Info logging is off.
	EvaluationLog string
}

// Details pairs the evaluated value with its DetailsData.
type Details[T any] struct {
	Data  DetailsData
	Value T
}

func convert[T any](d Details[model.Value], value T) Details[T] {
	return Details[T]{Data: d.Data, Value: value}
}
