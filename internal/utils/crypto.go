// internal/utils/crypto.go
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/blake2b"
)

func GenerateRandomString(length int) (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, length)

	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[n.Int64()]
	}

	return string(b), nil
}

// GenerateClaimNumber returns a human-facing reference such as CLM-20260118-7KQ2M9XA.
func GenerateClaimNumber(now time.Time) (string, error) {
	suffix, err := GenerateRandomString(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CLM-%s-%s", now.Format("20060102"), suffix), nil
}

// Checksum is the hex blake2b-256 digest stored with every document.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
