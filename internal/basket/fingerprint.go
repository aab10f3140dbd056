package basket

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"basket-console/internal/types"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
)

// Fingerprint is the SHA-256 of the RFC 8785 canonical JSON of the orders.
// Two baskets with the same legs in the same order share a fingerprint.
func Fingerprint(orders []types.Order) (string, error) {
	buf, err := json.Marshal(orders)
	if err != nil {
		return "", fmt.Errorf("marshal orders: %w", err)
	}
	canonical, err := jsoncanonicalizer.Transform(buf)
	if err != nil {
		return "", fmt.Errorf("canonicalize orders: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
