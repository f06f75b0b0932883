/*
Package params defines the JSON-RPC request parameter types used by the RPC
server and helpers to extract typed values out of them.
*/
package params

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

type (
	// Param represents a param served from the request.
	Param struct {
		json.RawMessage
	}

	// Params represents the JSON-RPC params.
	Params []Param
)

var (
	errMissingParameter = errors.New("parameter is missing")
	errNotAString       = errors.New("not a string")
	errNotAnInt         = errors.New("not an integer")
	errNotABool         = errors.New("not a boolean")
)

// Value returns the param struct for the given index if it exists.
func (p Params) Value(index int) *Param {
	if len(p) > index {
		return &p[index]
	}
	return nil
}

// String implements the fmt.Stringer interface.
func (p Params) String() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// GetString returns a string value of the parameter.
func (p *Param) GetString() (string, error) {
	if p == nil {
		return "", errMissingParameter
	}
	var s string
	if err := json.Unmarshal(p.RawMessage, &s); err != nil {
		return "", errNotAString
	}
	return s, nil
}

// GetBoolean returns a boolean value of the parameter.
func (p *Param) GetBoolean() (bool, error) {
	if p == nil {
		return false, errMissingParameter
	}
	var b bool
	if err := json.Unmarshal(p.RawMessage, &b); err != nil {
		return false, errNotABool
	}
	return b, nil
}

// GetUint64 returns an uint64 value of the parameter, which can be encoded
// either as a JSON number or as a numeric string.
func (p *Param) GetUint64() (uint64, error) {
	if p == nil {
		return 0, errMissingParameter
	}
	raw := strings.TrimSpace(string(p.RawMessage))
	if len(raw) > 1 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(p.RawMessage, &s); err != nil {
			return 0, errNotAnInt
		}
		raw = s
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errNotAnInt
	}
	return v, nil
}

// GetUint16 returns an uint16 value of the parameter.
func (p *Param) GetUint16() (uint16, error) {
	v, err := p.GetUint64()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint16 {
		return 0, errors.New("value doesn't fit uint16")
	}
	return uint16(v), nil
}

// GetInt returns an int value of the parameter.
func (p *Param) GetInt() (int, error) {
	if p == nil {
		return 0, errMissingParameter
	}
	var i int
	if err := json.Unmarshal(p.RawMessage, &i); err != nil {
		return 0, errNotAnInt
	}
	return i, nil
}

// GetBytesBase64 returns a base64-decoded byte array of the parameter.
func (p *Param) GetBytesBase64() ([]byte, error) {
	s, err := p.GetString()
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(s)
}
