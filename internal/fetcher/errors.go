package fetcher

import (
	"fmt"
	"net/http"
)

// FetchError describes a failed download. StatusCode is zero for transport
// failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("config fetch from %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("config fetch from %s failed with status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("config fetch from %s failed: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsSDKKeyError reports whether the CDN rejected the SDK key.
func (e *FetchError) IsSDKKeyError() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusNotFound
}
