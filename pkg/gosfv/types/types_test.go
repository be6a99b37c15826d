package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"xxh3", AlgXXH3, false},
		{"XXH3-128", AlgXXH3, false},
		{"xxhash3", AlgXXH3, false},
		{"xxh64", AlgXXH64, false},
		{"xxhash", AlgXXH64, false},
		{"crc32", AlgCRC32, false},
		{"SFV", AlgCRC32, false},
		{"md5", AlgMD5, false},
		{"MD5", AlgMD5, false},
		{"sha1", AlgSHA1, false},
		{"SHA-1", AlgSHA1, false},
		{"sha256", AlgSHA256, false},
		{"SHA-256", AlgSHA256, false},
		{"whirlpool", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDigestSize(t *testing.T) {
	want := map[Algorithm]int{
		AlgXXH3:   16,
		AlgXXH64:  8,
		AlgCRC32:  4,
		AlgMD5:    16,
		AlgSHA1:   20,
		AlgSHA256: 32,
	}
	for _, alg := range Algorithms() {
		assert.Equal(t, want[alg], alg.DigestSize(), alg.String())
	}
}

func TestAlgorithmRoundTrip(t *testing.T) {
	for _, alg := range Algorithms() {
		parsed, err := ParseAlgorithm(alg.String())
		require.NoError(t, err)
		assert.Equal(t, alg, parsed)
	}
}

func TestDigestEqualHex(t *testing.T) {
	d := Digest{0xde, 0xad, 0xbe, 0xef}

	assert.True(t, d.EqualHex("deadbeef"))
	assert.True(t, d.EqualHex("DEADBEEF"))
	assert.True(t, d.EqualHex("DeAdBeEf"))
	assert.True(t, d.EqualHex("  deadbeef  "))
	assert.False(t, d.EqualHex("deadbeee"))
	assert.False(t, d.EqualHex("deadbe"))
	assert.False(t, d.EqualHex("deadbeefff"))
	assert.False(t, d.EqualHex("not hex!"))
	assert.Equal(t, "deadbeef", d.Hex())
}

func TestWorkItemLifecycle(t *testing.T) {
	item := NewWorkItem("/tmp/x", 42)
	assert.Equal(t, StatePending, item.State())
	assert.True(t, item.FinishedAt().IsZero())

	require.True(t, item.Begin())
	assert.Equal(t, StateHashing, item.State())
	assert.False(t, item.Begin(), "Begin must not succeed twice")

	item.Complete(Digest{1, 2, 3, 4})
	assert.Equal(t, StateDone, item.State())
	assert.Equal(t, Digest{1, 2, 3, 4}, item.Digest())
	assert.False(t, item.FinishedAt().IsZero())
}

func TestWorkItemFail(t *testing.T) {
	item := NewWorkItem("/tmp/x", 42)
	require.True(t, item.Begin())

	wantErr := errors.New("read error")
	item.Fail(wantErr)
	assert.Equal(t, StateFailed, item.State())
	assert.Equal(t, wantErr, item.Err())
}

func TestWorkItemCancelBeforeStart(t *testing.T) {
	item := NewWorkItem("/tmp/x", 42)
	item.Cancel()
	assert.Equal(t, StateCancelled, item.State())
	assert.False(t, item.Begin(), "cancelled item must not start hashing")
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"1024", 1024, false},
		{"512B", 512, false},
		{"100K", 100 * KiB, false},
		{"100KB", 100 * KiB, false},
		{"100KiB", 100 * KiB, false},
		{"8M", 8 * MiB, false},
		{"1.5M", MiB + 512*KiB, false},
		{"2G", 2 * GiB, false},
		{"1T", TiB, false},
		{" 10 M ", 10 * MiB, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-5M", 0, true},
		{"10X", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "8.0 MiB", FormatSize(8*MiB))
}
