package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("garbage", def).Equal(def))
}

func TestWidenDate(t *testing.T) {
	start, err := WidenDate("2022-10-01", false)
	require.NoError(t, err)
	assert.Equal(t, "2022-10-01T00:00:00Z", start.Format(time.RFC3339))

	end, err := WidenDate("2022-10-01", true)
	require.NoError(t, err)
	assert.Equal(t, "2022-10-01T23:59:59Z", end.Format(time.RFC3339))

	full, err := WidenDate("2022-10-01T14:30:00-04:00", true)
	require.NoError(t, err)
	assert.Equal(t, "2022-10-01T18:30:00Z", full.UTC().Format(time.RFC3339))

	_, err = WidenDate("10/01/2022", false)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestParseRange(t *testing.T) {
	from, to, err := ParseRange("2022-10-01", "2022-10-14")
	require.NoError(t, err)
	assert.Equal(t, "2022-10-01T00:00:00Z", from.Format(time.RFC3339))
	assert.Equal(t, "2022-10-14T23:59:59Z", to.Format(time.RFC3339))
	assert.Equal(t, "2022-10-01..2022-10-14", FormatRange(from, to))

	_, _, err = ParseRange("2022-10-14", "2022-10-01")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = ParseRange("", "2022-10-01")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
