package ingestion

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"execution-lab/internal/domain"
)

// ErrMalformedRecord is returned for input rows that cannot be parsed.
var ErrMalformedRecord = errors.New("malformed record")

// barColumns is the expected bar CSV header.
var barColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// ParseBarsCSV reads OHLCV rows for symbol. The first row must be the header
// timestamp,open,high,low,close,volume. Timestamps are Unix milliseconds or
// RFC3339. Row order is preserved.
func ParseBarsCSV(r io.Reader, symbol string) ([]*domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(barColumns)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range barColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("%w: header column %d is %q, want %q", ErrMalformedRecord, i+1, header[i], col)
		}
	}

	var bars []*domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		ts, err := parseTimestamp(rec[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		var vals [5]float64
		for i := range vals {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d %s: %v", ErrMalformedRecord, line, barColumns[i+1], err)
			}
			vals[i] = v
		}
		bars = append(bars, &domain.Bar{
			Symbol:    symbol,
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return bars, nil
}

// snapshotLine is one JSON line of an order-book export. Levels are
// [price, qty] pairs.
type snapshotLine struct {
	Symbol    string       `json:"symbol"`
	Venue     string       `json:"venue"`
	Timestamp int64        `json:"ts"`
	Bids      [][2]float64 `json:"bids"`
	Asks      [][2]float64 `json:"asks"`
}

// ParseSnapshotsJSONL reads one snapshot per line. symbol, when non-empty,
// replaces the symbol of every line. Blank lines are skipped.
func ParseSnapshotsJSONL(r io.Reader, symbol string) ([]*domain.OrderBookSnapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var snaps []*domain.OrderBookSnapshot
	for line := 1; sc.Scan(); line++ {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var sl snapshotLine
		if err := json.Unmarshal([]byte(raw), &sl); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRecord, line, err)
		}
		if symbol != "" {
			sl.Symbol = symbol
		}
		if sl.Symbol == "" || sl.Timestamp <= 0 {
			return nil, fmt.Errorf("%w: line %d: symbol and ts are required", ErrMalformedRecord, line)
		}
		snaps = append(snaps, &domain.OrderBookSnapshot{
			Symbol:    sl.Symbol,
			Venue:     sl.Venue,
			Timestamp: sl.Timestamp,
			Bids:      toLevels(sl.Bids),
			Asks:      toLevels(sl.Asks),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	return snaps, nil
}

func toLevels(pairs [][2]float64) []domain.Level {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]domain.Level, len(pairs))
	for i, p := range pairs {
		out[i] = domain.Level{Price: p[0], Qty: p[1]}
	}
	return out
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: want Unix ms or RFC3339", s)
	}
	return t.UnixMilli(), nil
}
