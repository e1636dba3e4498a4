package identity

import (
	"crypto/rand"
	"math/big"

	goerrors "github.com/goliatone/go-errors"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultIDLength is used for user and session primary ids.
const DefaultIDLength = 24

// DefaultCodeDigits is the width of the human-facing numeric token.
const DefaultCodeDigits = 6

// GenerateID returns a cryptographically random identifier drawn from a
// fixed base62 alphabet.
func GenerateID(length int) (string, error) {
	if length <= 0 {
		length = DefaultIDLength
	}

	out := make([]byte, length)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random source")
		}
		out[i] = idAlphabet[n.Int64()]
	}

	return string(out), nil
}

// GenerateCode returns a fixed-width numeric string, zero padded, used
// as the secondary token on verification, OTP, and reset sessions.
func GenerateCode(digits int) (string, error) {
	if digits <= 0 {
		digits = DefaultCodeDigits
	}

	out := make([]byte, digits)
	max := big.NewInt(10)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random source")
		}
		out[i] = byte('0' + n.Int64())
	}

	return string(out), nil
}
