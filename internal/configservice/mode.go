package configservice

import (
	"fmt"
	"strings"
)

// PollingMode decides when the service goes to the network.
type PollingMode int

const (
	// AutoPoll refreshes in the background every poll interval.
	AutoPoll PollingMode = iota
	// LazyLoad refreshes on read once the cached entry is older than the cache TTL.
	LazyLoad
	// Manual only refreshes on an explicit Refresh call.
	Manual
)

// Identifier is the single letter sent in the product header.
func (m PollingMode) Identifier() string {
	switch m {
	case LazyLoad:
		return "l"
	case Manual:
		return "m"
	default:
		return "a"
	}
}

func (m PollingMode) String() string {
	switch m {
	case LazyLoad:
		return "lazy"
	case Manual:
		return "manual"
	default:
		return "auto"
	}
}

// ParsePollingMode maps "auto", "lazy" and "manual" to a PollingMode.
func ParsePollingMode(s string) (PollingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return AutoPoll, nil
	case "lazy":
		return LazyLoad, nil
	case "manual":
		return Manual, nil
	}
	return AutoPoll, fmt.Errorf("unknown polling mode %q", s)
}
