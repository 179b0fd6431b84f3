package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintArgs produces a stable fingerprint of a tool's arguments: the
// first 16 hex chars of a sha256 over the JSON encoding with sorted keys.
// Order-independent and deterministic across repeated runs.
func fingerprintArgs(args map[string]any) string {
	// encoding/json sorts map keys, which is exactly the stability we need.
	payload, err := json.Marshal(args)
	if err != nil {
		payload = []byte("{}")
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}
