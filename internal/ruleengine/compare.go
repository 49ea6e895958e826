package ruleengine

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

func textEquals(text, cmp string, negate bool) bool {
	return (text == cmp) != negate
}

func isOneOf(text string, list []string, negate bool) bool {
	for _, item := range list {
		if item == text {
			return !negate
		}
	}
	return negate
}

func startsOrEndsWithAnyOf(text string, list []string, startsWith, negate bool) bool {
	for _, item := range list {
		if startsWith && strings.HasPrefix(text, item) || !startsWith && strings.HasSuffix(text, item) {
			return !negate
		}
	}
	return negate
}

// sensitiveStartsOrEndsWithAnyOf compares salted hashes of attribute slices.
// Every list item has the form "<length>_<hash>" where length counts UTF-8
// bytes.
func sensitiveStartsOrEndsWithAnyOf(text string, list []string, salt, contextSalt string, startsWith, negate bool) (bool, error) {
	b := []byte(text)
	for _, item := range list {
		lengthText, hash, ok := strings.Cut(item, "_")
		n, err := strconv.Atoi(lengthText)
		if !ok || err != nil || n < 0 || hash == "" {
			return false, errorf("Comparison value is missing or invalid.")
		}
		if len(b) < n {
			continue
		}

		slice := b[:n]
		if !startsWith {
			slice = b[len(b)-n:]
		}
		if hashBytes(slice, salt, contextSalt) == hash {
			return !negate, nil
		}
	}
	return negate, nil
}

func containsAnyOf(text string, list []string, negate bool) bool {
	for _, item := range list {
		if strings.Contains(text, item) {
			return !negate
		}
	}
	return negate
}

// semVerIsOneOf skips empty entries. Any invalid entry makes the whole
// condition false, and the scan continues after a match so that invalid
// entries later in the list are still detected.
func semVerIsOneOf(version *semver.Version, list []string, negate bool) bool {
	result := false
	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		other, err := semver.StrictNewVersion(item)
		if err != nil {
			return false
		}
		if !result && version.Compare(other) == 0 {
			result = true
		}
	}
	return result != negate
}

// semVerRelation compares version with cmp. An invalid comparison value makes
// the condition false rather than an error.
func semVerRelation(version *semver.Version, c model.Comparator, cmp string) bool {
	other, err := semver.StrictNewVersion(strings.TrimSpace(cmp))
	if err != nil {
		return false
	}
	d := version.Compare(other)
	switch c {
	case model.SemVerLess:
		return d < 0
	case model.SemVerLessOrEquals:
		return d <= 0
	case model.SemVerGreater:
		return d > 0
	case model.SemVerGreaterOrEquals:
		return d >= 0
	default:
		return false
	}
}

func numberRelation(n float64, c model.Comparator, cmp float64) bool {
	switch c {
	case model.NumberEquals:
		return n == cmp
	case model.NumberNotEquals:
		return n != cmp
	case model.NumberLess:
		return n < cmp
	case model.NumberLessOrEquals:
		return n <= cmp
	case model.NumberGreater:
		return n > cmp
	case model.NumberGreaterOrEquals:
		return n >= cmp
	default:
		return false
	}
}

func arrayContainsAnyOf(array, list []string, negate bool) bool {
	for _, item := range list {
		for _, v := range array {
			if v == item {
				return !negate
			}
		}
	}
	return negate
}

func sensitiveArrayContainsAnyOf(array, list []string, salt, contextSalt string, negate bool) bool {
	for _, v := range array {
		hash := HashComparisonValue(v, salt, contextSalt)
		for _, item := range list {
			if hash == item {
				return !negate
			}
		}
	}
	return negate
}
