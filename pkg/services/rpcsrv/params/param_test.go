package params

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func mkParams(t *testing.T, js string) Params {
	var ps Params
	require.NoError(t, json.Unmarshal([]byte(js), &ps))
	return ps
}

func TestParamsValue(t *testing.T) {
	ps := mkParams(t, `[1, "two"]`)
	require.NotNil(t, ps.Value(0))
	require.NotNil(t, ps.Value(1))
	require.Nil(t, ps.Value(2))
}

func TestParamGetString(t *testing.T) {
	ps := mkParams(t, `["str", 42]`)
	s, err := ps.Value(0).GetString()
	require.NoError(t, err)
	require.Equal(t, "str", s)
	_, err = ps.Value(1).GetString()
	require.Error(t, err)
	_, err = ps.Value(2).GetString()
	require.Error(t, err)
}

func TestParamGetUint64(t *testing.T) {
	ps := mkParams(t, `[42, "65540", -1, "not a number"]`)
	v, err := ps.Value(0).GetUint64()
	require.NoError(t, err)
	require.EqualValues(t, 42, v)
	v, err = ps.Value(1).GetUint64()
	require.NoError(t, err)
	require.EqualValues(t, 65540, v)
	_, err = ps.Value(2).GetUint64()
	require.Error(t, err)
	_, err = ps.Value(3).GetUint64()
	require.Error(t, err)
}

func TestParamGetUint16(t *testing.T) {
	ps := mkParams(t, `[65535, 65536]`)
	v, err := ps.Value(0).GetUint16()
	require.NoError(t, err)
	require.EqualValues(t, 65535, v)
	_, err = ps.Value(1).GetUint16()
	require.Error(t, err)
}

func TestParamGetBytesBase64(t *testing.T) {
	ps := mkParams(t, `["AQIDBA==", "%%%"]`)
	b, err := ps.Value(0).GetBytesBase64()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, b)
	_, err = ps.Value(1).GetBytesBase64()
	require.Error(t, err)
}

func TestRequestUnmarshalJSON(t *testing.T) {
	// websocket.Conn.ReadJSON goes through json.Unmarshal, it has to
	// dispatch single/batch the same way DecodeData does.
	r := NewRequest()
	require.NoError(t, json.Unmarshal([]byte(
		`{"jsonrpc":"2.0","method":"subscribe","params":["execution_added"],"id":1}`), r))
	require.NotNil(t, r.In)
	require.Equal(t, "subscribe", r.In.Method)
	require.Nil(t, r.Batch)

	r = NewRequest()
	require.NoError(t, json.Unmarshal([]byte(
		`[{"jsonrpc":"2.0","method":"getcount","id":1}]`), r))
	require.Nil(t, r.In)
	require.Len(t, r.Batch, 1)
}

func TestRequestDecodeData(t *testing.T) {
	r := NewRequest()
	err := r.DecodeData(io.NopCloser(bytes.NewReader([]byte(
		`{"jsonrpc":"2.0","method":"getcount","params":[],"id":1}`))))
	require.NoError(t, err)
	require.NotNil(t, r.In)
	require.Equal(t, "getcount", r.In.Method)
	require.Nil(t, r.Batch)

	r = NewRequest()
	err = r.DecodeData(io.NopCloser(bytes.NewReader([]byte(
		`[{"jsonrpc":"2.0","method":"getcount","id":1},{"jsonrpc":"2.0","method":"getversion","id":2}]`))))
	require.NoError(t, err)
	require.Nil(t, r.In)
	require.Len(t, r.Batch, 2)

	r = NewRequest()
	err = r.DecodeData(io.NopCloser(bytes.NewReader([]byte(`not json`))))
	require.Error(t, err)
}
