package cache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/rafaeljc/heimdall-sdk/internal/model"
)

// Entry is the unit of cache persistence: the raw config JSON, its parsed
// form, the ETag it was served with and the time it was fetched. Entries are
// immutable and replaced wholesale.
type Entry struct {
	ConfigJSON string
	Config     *model.Config
	ETag       string
	FetchTime  time.Time

	fingerprint uint64
}

// EmptyEntry is the sentinel for "never fetched". It is never serialized.
var EmptyEntry = &Entry{}

// NewEntry builds an entry. FetchTime is truncated to millisecond precision so
// it survives a round trip through Serialize and ParseEntry.
func NewEntry(configJSON string, cfg *model.Config, etag string, fetchTime time.Time) *Entry {
	return &Entry{
		ConfigJSON:  configJSON,
		Config:      cfg,
		ETag:        etag,
		FetchTime:   time.UnixMilli(fetchTime.UnixMilli()),
		fingerprint: murmur3.Sum64([]byte(configJSON)),
	}
}

// IsEmpty reports whether e is the never-fetched sentinel.
func (e *Entry) IsEmpty() bool {
	return e == nil || e == EmptyEntry || e.Config == nil
}

// WithFetchTime returns a copy of e with a new fetch time. Used when the
// server reports the config as not modified.
func (e *Entry) WithFetchTime(t time.Time) *Entry {
	c := *e
	c.FetchTime = time.UnixMilli(t.UnixMilli())
	return &c
}

// Fingerprint returns a hash of the raw config JSON used to detect changes.
func (e *Entry) Fingerprint() uint64 {
	if e.IsEmpty() {
		return 0
	}
	return e.fingerprint
}

// Serialize encodes e as "<unixMillis>\n<etag>\n<json>". The JSON comes last
// because it may contain newlines itself.
func (e *Entry) Serialize() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(e.FetchTime.UnixMilli(), 10))
	sb.WriteByte('\n')
	sb.WriteString(e.ETag)
	sb.WriteByte('\n')
	sb.WriteString(e.ConfigJSON)
	return sb.String()
}

var (
	ErrMissingFields = errors.New("number of values is fewer than expected")
	ErrEmptyETag     = errors.New("empty eTag value")
)

// ParseEntry decodes a value produced by Serialize. Only the first two
// newlines separate fields.
func ParseEntry(s string) (*Entry, error) {
	timeText, rest, ok := strings.Cut(s, "\n")
	if !ok {
		return nil, ErrMissingFields
	}
	etag, configJSON, ok := strings.Cut(rest, "\n")
	if !ok {
		return nil, ErrMissingFields
	}

	millis, err := strconv.ParseInt(timeText, 10, 64)
	if err != nil || millis < 0 {
		return nil, fmt.Errorf("invalid fetch time %q", timeText)
	}
	if etag == "" {
		return nil, ErrEmptyETag
	}

	cfg, err := model.Parse([]byte(configJSON))
	if err != nil {
		return nil, fmt.Errorf("invalid config JSON content: %w", err)
	}

	return NewEntry(configJSON, cfg, etag, time.UnixMilli(millis)), nil
}
