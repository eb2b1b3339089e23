package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{"600000.SSE", "000001.SZSE", "AAPL.NASDAQ", "0700.HKEX"}
	for _, c := range cases {
		id, err := Parse(c)
		require.NoError(t, err)
		assert.Equal(t, c, id.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "600000", "600000.", ".SSE", "600000.MOON"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestNativeProjection(t *testing.T) {
	id := ID{Symbol: "600000", Exchange: SSE}
	assert.Equal(t, "600000.SH", id.Native())

	back, err := ParseNative("600000.SH", SSE)
	require.NoError(t, err)
	assert.Equal(t, id, back)
}
