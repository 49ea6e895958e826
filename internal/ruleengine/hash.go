package ruleengine

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// HashComparisonValue returns the hex encoded SHA-256 digest of
// text+configSalt+contextSalt. Sensitive comparators compare against these
// digests so raw targeting values never appear in the config JSON.
func HashComparisonValue(text, configSalt, contextSalt string) string {
	return hashBytes([]byte(text), configSalt, contextSalt)
}

func hashBytes(text []byte, configSalt, contextSalt string) string {
	h := sha256.New()
	_, _ = h.Write(text)
	_, _ = h.Write([]byte(configSalt))
	_, _ = h.Write([]byte(contextSalt))
	return hex.EncodeToString(h.Sum(nil))
}

// PercentageBucket maps key+attributeText to a sticky bucket in [0, 99]: the
// first 7 hex characters of the SHA-1 digest read as an integer, modulo 100.
func PercentageBucket(key, attributeText string) int {
	sum := sha1.Sum([]byte(key + attributeText))
	hexSum := hex.EncodeToString(sum[:])

	// 7 hex digits always fit into an int64.
	n, _ := strconv.ParseInt(hexSum[:7], 16, 64)
	return int(n % 100)
}
