// Package poolid derives the stable identifier used as the storage join key
// for a pool.
package poolid

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Generate returns the pool identifier for the given attribute triple.
//
// The formatted triple is the HMAC key and the message is empty. Identifiers
// already persisted were produced this way, so the scheme must not change.
func Generate(miningAddress, mergedMining, mergedMiningIsParentChain string) string {
	key := fmt.Sprintf("%s-%s-%s", miningAddress, mergedMining, mergedMiningIsParentChain)
	mac := hmac.New(sha256.New, []byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// FlagText renders a raw JSON flag value the way it appears in the key:
// booleans and numbers as their literal text, strings unquoted, and an absent
// or null value as the empty string.
func FlagText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}
