package agentapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/rafaeljc/heimdall-sdk/internal/client"
	"github.com/rafaeljc/heimdall-sdk/internal/model"
	"github.com/rafaeljc/heimdall-sdk/internal/user"
)

const maxKeyLength = 255

// UserRequest is the JSON form of a User Object.
type UserRequest struct {
	Identifier string         `json:"identifier"`
	Email      string         `json:"email,omitempty"`
	Country    string         `json:"country,omitempty"`
	Custom     map[string]any `json:"custom,omitempty"`
}

// toUser converts the DTO. JSON arrays are accepted only when they hold
// strings.
func (u *UserRequest) toUser() (*user.User, *ErrorResponse) {
	if u == nil {
		return nil, nil
	}

	out := &user.User{
		Identifier: u.Identifier,
		Email:      u.Email,
		Country:    u.Country,
	}
	if len(u.Custom) == 0 {
		return out, nil
	}

	out.Custom = make(map[string]any, len(u.Custom))
	var details []ErrorDetail
	for name, v := range u.Custom {
		switch t := v.(type) {
		case string, float64, bool:
			out.Custom[name] = t
		case []any:
			items := make([]string, 0, len(t))
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					details = append(details, ErrorDetail{Field: "user.custom." + name, Issue: "arrays must contain strings only"})
					break
				}
				items = append(items, s)
			}
			out.Custom[name] = items
		case nil:
		default:
			details = append(details, ErrorDetail{Field: "user.custom." + name, Issue: fmt.Sprintf("unsupported value type %T", v)})
		}
	}
	if len(details) > 0 {
		return nil, &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Invalid user attributes", Details: details}
	}
	return out, nil
}

// EvaluateRequest is the payload of POST /api/v1/evaluate.
type EvaluateRequest struct {
	Key  string       `json:"key"`
	User *UserRequest `json:"user,omitempty"`
	// DefaultValue is returned when the flag cannot be evaluated.
	DefaultValue any `json:"default_value,omitempty"`
}

// Sanitize trims the key in place.
func (r *EvaluateRequest) Sanitize() {
	r.Key = strings.TrimSpace(r.Key)
}

// Validate checks the request shape.
func (r *EvaluateRequest) Validate() *ErrorResponse {
	if r.Key == "" {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Key is required"}
	}
	if len(r.Key) > maxKeyLength {
		return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Key must be at most 255 characters"}
	}
	if r.DefaultValue != nil {
		if _, err := model.ValueOf(r.DefaultValue); err != nil {
			return &ErrorResponse{Code: "ERR_INVALID_INPUT", Message: "Default value must be a boolean, string or number"}
		}
	}
	return nil
}

// EvaluateAllRequest is the payload of POST /api/v1/evaluate-all.
type EvaluateAllRequest struct {
	User *UserRequest `json:"user,omitempty"`
}

// EvaluationResponse describes one evaluated flag.
type EvaluationResponse struct {
	Key            string     `json:"key"`
	Value          any        `json:"value"`
	VariationID    string     `json:"variation_id,omitempty"`
	IsDefaultValue bool       `json:"is_default_value"`
	Error          string     `json:"error,omitempty"`
	FetchTime      *time.Time `json:"fetch_time,omitempty"`
}

func newEvaluationResponse(d client.Details[model.Value], def any) EvaluationResponse {
	resp := EvaluationResponse{
		Key:            d.Data.Key,
		Value:          d.Value.Any(),
		VariationID:    d.Data.VariationID,
		IsDefaultValue: d.Data.IsDefaultValue,
	}
	if d.Data.IsDefaultValue {
		resp.Value = def
	}
	if d.Data.Error != nil {
		resp.Error = d.Data.Error.Error()
	}
	if !d.Data.FetchTime.IsZero() {
		ft := d.Data.FetchTime.UTC()
		resp.FetchTime = &ft
	}
	return resp
}

// EvaluateAllResponse lists every evaluated flag.
type EvaluateAllResponse struct {
	Data []EvaluationResponse `json:"data"`
}

// KeysResponse lists the available setting keys.
type KeysResponse struct {
	Keys []string `json:"keys"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail points at one invalid field.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
