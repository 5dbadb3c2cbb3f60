package ticker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{name: "single line", input: `"AAPL","MSFT","IBM"`, wantLen: 3},
		{name: "multiple lines", input: "\"AAPL\",\"MSFT\"\n\"IBM\"\n", wantLen: 3},
		{name: "duplicates and case", input: `"aapl","AAPL", "Aapl"`, wantLen: 1},
		{name: "unquoted fields", input: "TSLA,NVDA", wantLen: 2},
		{name: "empty", input: "", wantErr: true},
		{name: "only blanks", input: `"",""`, wantErr: true},
		{name: "broken quote", input: `"AAPL","MS"FT"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Parse(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, w.Len())
		})
	}
}

func TestWhitelist_TickerExists(t *testing.T) {
	w, err := Parse(strings.NewReader(`"AAPL","BRK.B"`))
	require.NoError(t, err)

	assert.True(t, w.TickerExists("AAPL"))
	assert.True(t, w.TickerExists("aapl"))
	assert.True(t, w.TickerExists(" brk.b "))
	assert.False(t, w.TickerExists("MSFT"))
	assert.False(t, w.TickerExists(""))
}

func TestLoad_Embedded(t *testing.T) {
	w, err := Load("", logger.Nop())
	require.NoError(t, err)

	assert.Greater(t, w.Len(), 100)
	assert.True(t, w.TickerExists("AAPL"))
	assert.True(t, w.TickerExists("msft"))
	assert.False(t, w.TickerExists("DUMMY"))
}

func TestLoad_FileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.csv")
	require.NoError(t, os.WriteFile(path, []byte(`"DUMMY","ZZZZ"`), 0o600))

	w, err := Load(path, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, w.Len())
	assert.True(t, w.TickerExists("dummy"))
	assert.False(t, w.TickerExists("AAPL"), "the override replaces the embedded list")
}

func TestLoad_Failures(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.csv"), logger.Nop())
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = Load(empty, logger.Nop())
	assert.ErrorIs(t, err, ErrEmptyWhitelist)
}
