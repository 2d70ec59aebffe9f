package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInstrumentDump(t *testing.T) {
	t.Run("strips the header row", func(t *testing.T) {
		body := "instrument_token,exchange_token,tradingsymbol\n256265,1001,NIFTY 50\n260105,1016,NIFTY BANK\n"
		records, err := readInstrumentDump(strings.NewReader(body))
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "256265", records[0][0])
		assert.Equal(t, "NIFTY BANK", records[1][2])
	})

	t.Run("empty body yields no records", func(t *testing.T) {
		var records [][]string
		var err error
		require.NotPanics(t, func() {
			records, err = readInstrumentDump(strings.NewReader(""))
		})
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("header-only dump yields no records", func(t *testing.T) {
		records, err := readInstrumentDump(strings.NewReader("instrument_token,exchange_token,tradingsymbol\n"))
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("malformed CSV is an error", func(t *testing.T) {
		_, err := readInstrumentDump(strings.NewReader("a,b,c\n1,2\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse CSV")
	})
}
