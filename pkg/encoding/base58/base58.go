/*
Package base58 provides base58 encoding/decoding with the 4-byte hash
checksum appended.
*/
package base58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dankorotin/countergo/pkg/crypto/hash"
	"github.com/mr-tron/base58"
)

// CheckDecode implements a base58-encoded string decoding with hash-based
// checksum check.
func CheckDecode(s string) (b []byte, err error) {
	b, err = base58.Decode(s)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(s); i++ {
		if s[i] != '1' {
			break
		}
		b = append([]byte{0x00}, b...)
	}

	if len(b) < 5 {
		return nil, errors.New("invalid base-58 check string: missing checksum")
	}

	if !bytes.Equal(hash.Checksum(b[:len(b)-4]), b[len(b)-4:]) {
		return nil, errors.New("invalid base-58 check string: invalid checksum")
	}

	// Strip the 4 byte long hash.
	b = b[:len(b)-4]

	return b, nil
}

// CheckEncode encodes given byte slice into a base58 string with a 4-byte
// hash checksum appended.
func CheckEncode(b []byte) string {
	b = append(b, hash.Checksum(b)...)
	return base58.Encode(b)
}

// TrimPrefixedCheckDecode is like CheckDecode but also verifies and strips
// the given one-byte prefix.
func TrimPrefixedCheckDecode(s string, prefix byte) ([]byte, error) {
	b, err := CheckDecode(s)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || b[0] != prefix {
		return nil, fmt.Errorf("unexpected prefix %x", b)
	}
	return b[1:], nil
}
