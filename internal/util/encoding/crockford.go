// Package encoding provides the lowercase Crockford base32 form used for trace and session ids.
package encoding

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

const crockfordBase32Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

//nolint:gochecknoglobals
var crockford = base32.NewEncoding(crockfordBase32Alphabet).WithPadding(base32.NoPadding)

// EncodeCrockfordB32LC encodes input with Crockford's base32 alphabet, unpadded and lowercased.
func EncodeCrockfordB32LC(input []byte) string {
	return strings.ToLower(crockford.EncodeToString(input))
}

// DecodeCrockfordB32LC reverses EncodeCrockfordB32LC. Input is case-insensitive;
// the commonly confused letters O, I and L are read as 0, 1 and 1.
func DecodeCrockfordB32LC(input string) ([]byte, error) {
	input = strings.NewReplacer("O", "0", "I", "1", "L", "1").Replace(strings.ToUpper(input))

	out, err := crockford.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	return out, nil
}

// RandomID returns n bytes from crypto/rand in encoded form.
func RandomID(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return EncodeCrockfordB32LC(buf), nil
}
