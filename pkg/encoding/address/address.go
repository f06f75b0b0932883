/*
Package address implements conversion of the counter state identity (a
Uint160 derived from the genesis root cell) to/from its string
representation.
*/
package address

import (
	"errors"

	"github.com/dankorotin/countergo/pkg/encoding/base58"
	"github.com/dankorotin/countergo/pkg/util"
)

// Prefix is the byte used to prepend to addresses when encoding them, it
// fixes the first letter of any valid address string.
const Prefix = 0x42

// Uint160ToString returns the string representation of a Uint160.
func Uint160ToString(u util.Uint160) string {
	// Don't forget to prepend the address version.
	b := append([]byte{Prefix}, u.BytesBE()...)
	return base58.CheckEncode(b)
}

// StringToUint160 attempts to decode the given address string into a Uint160.
func StringToUint160(s string) (u util.Uint160, err error) {
	b, err := base58.TrimPrefixedCheckDecode(s, Prefix)
	if err != nil {
		return u, err
	}
	if len(b) != util.Uint160Size {
		return u, errors.New("invalid address length")
	}
	return util.Uint160DecodeBytesBE(b)
}
