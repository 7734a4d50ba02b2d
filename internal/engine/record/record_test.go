package record_test

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"kvs/internal/engine/record"
	"kvs/internal/kverrors"
)

func TestEncodeDecodePut_RoundTrips(t *testing.T) {
	t.Parallel()

	key := []byte("user:alice")
	val := []byte("hello world")

	buf := bytes.NewBuffer(record.EncodePut(key, val))

	rec, outcome, err := record.DecodeOne(bufio.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, record.OutcomeOK, outcome)
	require.Equal(t, record.TagPut, rec.Tag)
	require.Equal(t, key, rec.Key)
	require.Equal(t, val, rec.Value)
}

func TestEncodeDecodeDel_RoundTrips(t *testing.T) {
	t.Parallel()

	key := []byte("user:alice")

	buf := bytes.NewBuffer(record.EncodeDel(key))

	rec, outcome, err := record.DecodeOne(bufio.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, record.OutcomeOK, outcome)
	require.Equal(t, record.TagDel, rec.Tag)
	require.Equal(t, key, rec.Key)
	require.Nil(t, rec.Value)
}

func TestDecodeOne_CleanEOF(t *testing.T) {
	t.Parallel()

	_, outcome, err := record.DecodeOne(bufio.NewReader(bytes.NewReader(nil)))
	require.NoError(t, err)
	require.Equal(t, record.OutcomeEOF, outcome)
}

func TestDecodeOne_TornPayload(t *testing.T) {
	t.Parallel()

	// Zero bytes at all is EOF; a record cut off inside its value payload
	// is Torn.
	full := record.EncodePut([]byte("k"), []byte("v"))
	torn := full[:len(full)-2]

	_, outcome, err := record.DecodeOne(bufio.NewReader(bytes.NewReader(torn)))
	require.NoError(t, err)
	require.Equal(t, record.OutcomeTorn, outcome)
}

func TestDecodeOne_TornKeyLength(t *testing.T) {
	t.Parallel()

	buf := []byte{byte(record.TagPut), 0x01, 0x00} // short length field

	_, outcome, err := record.DecodeOne(bufio.NewReader(bytes.NewReader(buf)))
	require.NoError(t, err)
	require.Equal(t, record.OutcomeTorn, outcome)
}

func TestDecodeOne_CorruptOversizedKeyLength(t *testing.T) {
	t.Parallel()

	buf := []byte{byte(record.TagPut), 0xff, 0xff, 0xff, 0x7f} // huge key length

	_, _, err := record.DecodeOne(bufio.NewReader(bytes.NewReader(buf)))
	require.Error(t, err)
	require.True(t, errors.Is(err, kverrors.ErrCorrupt))
}

func TestDecodeOne_CorruptOversizedValueLength(t *testing.T) {
	t.Parallel()

	key := []byte("k")

	buf := record.EncodeDel(key) // reuse key-length-prefixed bytes
	buf[0] = byte(record.TagPut)
	buf = append(buf, 0xff, 0xff, 0xff, 0x7f)

	_, _, err := record.DecodeOne(bufio.NewReader(bytes.NewReader(buf)))
	require.Error(t, err)
	require.True(t, errors.Is(err, kverrors.ErrCorrupt))
}

func TestEncodePut_PanicsOnOversizedKey(t *testing.T) {
	t.Parallel()

	big := make([]byte, record.MaxKeyLen+1)

	require.Panics(t, func() {
		record.EncodePut(big, nil)
	})
}

func TestEncodePut_PanicsOnEmptyKey(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		record.EncodePut(nil, []byte("v"))
	})
}

func TestEncodedSize_MatchesEncodePutLength(t *testing.T) {
	t.Parallel()

	key := []byte("abc")
	val := []byte("defgh")

	require.Equal(t, len(record.EncodePut(key, val)), record.EncodedSize(key, val))
	require.Equal(t, len(record.EncodeDel(key)), record.EncodedDelSize(key))
}
