package common

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HashJSON returns the lowercase hex SHA-256 of v's JSON encoding. Callers
// that need a stable digest must pass values whose encoding is deterministic
// (structs and sorted slices, not maps with float keys).
func HashJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
