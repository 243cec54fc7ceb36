// Package address canonicalizes community member addresses.
//
// Every ingestion path — chain logs, channel messages, store records — routes
// through Normalize before an address is used as a map key or compared for
// equality, so the rest of the core never has to worry about case or
// formatting drift between sources.
package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrBadAddress is returned when an input string is not a well-formed
// 20-byte hex address.
var ErrBadAddress = errors.New("bad address")

// Normalize parses s and returns its canonical checksummed hex form
// (0x-prefixed, EIP-55 mixed case), the form used for all equality and map
// lookups in this package.
func Normalize(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	return common.HexToAddress(s).Hex(), nil
}

// MustNormalize is Normalize but panics on a malformed address. Only safe for
// constants and test fixtures.
func MustNormalize(s string) string {
	out, err := Normalize(s)
	if err != nil {
		panic(err)
	}
	return out
}

// Lower returns the canonical checksummed form lower-cased, used as the
// leaf-hash encoding input per the on-chain verifier's expectations.
func Lower(s string) (string, error) {
	canon, err := Normalize(s)
	if err != nil {
		return "", err
	}
	return strings.ToLower(canon), nil
}
