package ticker

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

//go:embed tickers.csv
var embeddedTickers []byte

// ErrEmptyWhitelist is returned when the source holds no ticker at all
var ErrEmptyWhitelist = errors.New("ticker whitelist is empty")

// Whitelist is the fixed set of tickers the service answers for.
// Requests for anything else are rejected before touching the cache,
// the database or the API quota.
// ⭐ SSOT: 티커 유효성 검증은 여기서만
type Whitelist struct {
	tickers mapset.Set[string]
}

// Load reads the whitelist from path, or from the embedded list when path is empty.
// Any failure here must stop the process.
func Load(path string, log *logger.Logger) (*Whitelist, error) {
	source := "embedded"
	data := embeddedTickers
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read ticker file %s: %w", path, err)
		}
		source = path
	}

	w, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load ticker whitelist from %s: %w", source, err)
	}

	log.WithModule("ticker").WithFields(map[string]interface{}{
		"source":  source,
		"tickers": w.Len(),
	}).Info("Ticker whitelist loaded")

	return w, nil
}

// Parse reads quoted, comma separated tickers. Line breaks are allowed anywhere
// between fields.
func Parse(r io.Reader) (*Whitelist, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	tickers := mapset.NewSet[string]()
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse tickers: %w", err)
		}
		for _, field := range record {
			if t := normalize(field); t != "" {
				tickers.Add(t)
			}
		}
	}

	if tickers.Cardinality() == 0 {
		return nil, ErrEmptyWhitelist
	}
	return &Whitelist{tickers: tickers}, nil
}

// TickerExists reports whether ticker is known, ignoring case
func (w *Whitelist) TickerExists(ticker string) bool {
	return w.tickers.Contains(normalize(ticker))
}

// Len returns the number of known tickers
func (w *Whitelist) Len() int {
	return w.tickers.Cardinality()
}

func normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
