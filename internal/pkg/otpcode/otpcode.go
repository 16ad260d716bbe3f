package otpcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Length is the number of digits in a generated code.
const Length = 6

var space = big.NewInt(1_000_000)

// Generate returns a 6-digit numeric code, zero-padded, drawn uniformly
// from 000000-999999 with crypto/rand. Each call is independent.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, space)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
