package ruleengine

import (
	"math"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

func mustVersion(t *testing.T, s string) *semver.Version {
	t.Helper()
	v, err := semver.StrictNewVersion(s)
	require.NoError(t, err)
	return v
}

func TestSemVerRelation_InvalidComparisonValueIsFalse(t *testing.T) {
	t.Parallel()

	v := mustVersion(t, "1.0.0")

	for _, c := range []model.Comparator{
		model.SemVerLess, model.SemVerLessOrEquals, model.SemVerGreater, model.SemVerGreaterOrEquals,
	} {
		assert.False(t, semVerRelation(v, c, "not-a-version"), c.String())
	}
}

func TestSemVerRelation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		c       model.Comparator
		cmp     string
		want    bool
	}{
		{name: "less", version: "1.0.0", c: model.SemVerLess, cmp: "1.0.1", want: true},
		{name: "prerelease is lower", version: "1.0.0-alpha", c: model.SemVerLess, cmp: "1.0.0", want: true},
		{name: "build metadata ignored", version: "1.0.0+build.1", c: model.SemVerLessOrEquals, cmp: " 1.0.0 ", want: true},
		{name: "greater", version: "2.0.0", c: model.SemVerGreater, cmp: "1.9.9", want: true},
		{name: "not greater or equal", version: "1.0.0", c: model.SemVerGreaterOrEquals, cmp: "1.0.1", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, semVerRelation(mustVersion(t, tt.version), tt.c, tt.cmp))
		})
	}
}

func TestSemVerIsOneOf(t *testing.T) {
	t.Parallel()

	v := mustVersion(t, "1.2.3")

	assert.True(t, semVerIsOneOf(v, []string{"", "1.0.0", " 1.2.3 "}, false), "empty entries are skipped")
	assert.False(t, semVerIsOneOf(v, []string{"1.2.3", "invalid"}, false), "invalid entry after a match")
	assert.False(t, semVerIsOneOf(v, []string{"1.2.3", "invalid"}, true), "invalid entry is not negated")
	assert.True(t, semVerIsOneOf(v, []string{"2.0.0"}, true))
	assert.False(t, semVerIsOneOf(v, nil, false))
}

func TestNumberRelation_IEEE(t *testing.T) {
	t.Parallel()

	nan := math.NaN()

	assert.True(t, numberRelation(1, model.NumberEquals, 1))
	assert.False(t, numberRelation(nan, model.NumberEquals, nan))
	assert.True(t, numberRelation(nan, model.NumberNotEquals, nan))
	assert.False(t, numberRelation(nan, model.NumberLess, 1))
	assert.True(t, numberRelation(math.Inf(-1), model.NumberLessOrEquals, -1e308))
	assert.True(t, numberRelation(3, model.NumberGreaterOrEquals, 3))
}

func TestTextComparisons(t *testing.T) {
	t.Parallel()

	assert.True(t, textEquals("a", "a", false))
	assert.True(t, textEquals("a", "b", true))
	assert.True(t, isOneOf("b", []string{"a", "b"}, false))
	assert.True(t, isOneOf("c", []string{"a", "b"}, true))
	assert.True(t, startsOrEndsWithAnyOf("joe@example.com", []string{"x", "joe"}, true, false))
	assert.True(t, startsOrEndsWithAnyOf("joe@example.com", []string{".com"}, false, false))
	assert.False(t, startsOrEndsWithAnyOf("joe@example.com", []string{".com"}, false, true))
	assert.True(t, containsAnyOf("joe@example.com", []string{"@example"}, false))
	assert.True(t, arrayContainsAnyOf([]string{"dev", "admin"}, []string{"admin"}, false))
	assert.True(t, arrayContainsAnyOf([]string{"dev"}, []string{"admin"}, true))
}

func TestSensitiveStartsOrEndsWithAnyOf(t *testing.T) {
	t.Parallel()

	const (
		prefixHash = "051cdba4200baa1400779e750593f131cc4ae308d1fe89af8c7b8df9952b44a1" // "a@b"
		suffixHash = "965ddb6b696dbc6064172a0646bb2b05dc6f649b3ad4b09b6730556d17ba3f77" // ".com"
	)

	ok, err := sensitiveStartsOrEndsWithAnyOf("a@b.com", []string{"50_x", "3_" + prefixHash}, "salt", "flag", true, false)
	require.NoError(t, err)
	assert.True(t, ok, "too long slices are skipped")

	ok, err = sensitiveStartsOrEndsWithAnyOf("a@b.com", []string{"4_" + suffixHash}, "salt", "flag", false, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sensitiveStartsOrEndsWithAnyOf("a@b.com", []string{"4_" + suffixHash}, "salt", "flag", false, true)
	require.NoError(t, err)
	assert.False(t, ok)

	for _, bad := range []string{"nohash", "x_abc", "-1_abc", "3_"} {
		_, err = sensitiveStartsOrEndsWithAnyOf("a@b.com", []string{bad}, "salt", "flag", true, false)
		assert.EqualError(t, err, "Comparison value is missing or invalid.", bad)
	}
}

func TestSensitiveArrayContainsAnyOf(t *testing.T) {
	t.Parallel()

	const adminHash = "2454de65950590b707518212bb4c640560368075d4ef3b9437603f02a5f0da65"

	assert.True(t, sensitiveArrayContainsAnyOf([]string{"dev", "admin"}, []string{adminHash}, "salt", "flag", false))
	assert.False(t, sensitiveArrayContainsAnyOf([]string{"dev"}, []string{adminHash}, "salt", "flag", false))
}
