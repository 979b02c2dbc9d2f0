package codec_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/lockguard/internal/codec"
)

func TestStateRoundTrip(t *testing.T) {
	t.Parallel()

	for _, clean := range []bool{true, false} {
		var buf bytes.Buffer

		require.NoError(t, codec.WriteState(&buf, clean))

		got, err := codec.ReadState(&buf)
		require.NoError(t, err)
		require.Equal(t, byte(codec.StateRegionProtocol), got.Protocol)
		require.Equal(t, clean, got.Clean)
	}
}

func TestReadStateEmptyFileIsDirty(t *testing.T) {
	t.Parallel()

	got, err := codec.ReadState(bytes.NewReader(nil))
	require.NoError(t, err)
	require.False(t, got.Clean)
}

func TestReadStateTruncatedMidWriteIsDirty(t *testing.T) {
	t.Parallel()

	// Only the protocol byte made it to disk before the crash.
	got, err := codec.ReadState(bytes.NewReader([]byte{codec.StateRegionProtocol}))
	require.NoError(t, err)
	require.False(t, got.Clean)
}

func TestReadStateBadProtocolIsCorrupt(t *testing.T) {
	t.Parallel()

	_, err := codec.ReadState(bytes.NewReader([]byte{9, 1}))
	require.ErrorIs(t, err, codec.ErrCorruptLockFile)
}

func TestInfoRoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, codec.WriteInfo(&buf, "pid-123", "127.0.0.1:9001"))

	got, err := codec.ReadInfo(&buf)
	require.NoError(t, err)

	want := codec.Info{PID: "pid-123", Address: "127.0.0.1:9001"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Info round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestInfoRoundTripEmptyStrings(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, codec.WriteInfo(&buf, "", ""))

	got, err := codec.ReadInfo(&buf)
	require.NoError(t, err)
	require.Equal(t, codec.Info{PID: "", Address: ""}, got)
}

func TestInfoTruncatesLongStrings(t *testing.T) {
	t.Parallel()

	long := make([]rune, 1000)
	for i := range long {
		long[i] = 'a'
	}

	var buf bytes.Buffer

	require.NoError(t, codec.WriteInfo(&buf, string(long), ""))

	got, err := codec.ReadInfo(&buf)
	require.NoError(t, err)
	require.Len(t, []rune(got.PID), 340)
}

func TestReadInfoShortFileIsUnknown(t *testing.T) {
	t.Parallel()

	got, err := codec.ReadInfo(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Equal(t, "unknown", got.PID)
	require.Equal(t, "unknown", got.Address)
}

func TestReadInfoBadProtocolIsCorrupt(t *testing.T) {
	t.Parallel()

	_, err := codec.ReadInfo(bytes.NewReader([]byte{7, 0, 0, 0, 0}))
	require.ErrorIs(t, err, codec.ErrCorruptLockFile)
}

// bytes.Buffer is the in-memory stand-in used above; it satisfies the
// io.ReadWriter contract both codecs are written against.
var _ io.ReadWriter = (*bytes.Buffer)(nil)
