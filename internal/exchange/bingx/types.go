package bingx

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"bingx-relay/internal/core"
)

type apiError struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
}

type APIError struct {
	Status int
	Code   int
	Msg    string
	// Body is the exchange payload when it was valid JSON.
	Body json.RawMessage
}

func (e APIError) Error() string {
	if e.Code == 0 {
		detail := e.Msg
		if detail == "" {
			detail = string(bytes.TrimSpace(e.Body))
		}
		return fmt.Sprintf("bingx http error %d: %s", e.Status, detail)
	}
	return "bingx api error " + strconv.Itoa(e.Code) + ": " + e.Msg
}

type envelope struct {
	Code json.RawMessage `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tickerPriceResponse struct {
	Symbol string          `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type positionRow struct {
	Symbol       string `json:"symbol"`
	PositionSide string `json:"positionSide"`
}

type orderRow struct {
	Symbol  string          `json:"symbol"`
	OrderID json.RawMessage `json:"orderId"`
}

type candleRow struct {
	Open   json.RawMessage `json:"open"`
	Close  json.RawMessage `json:"close"`
	High   json.RawMessage `json:"high"`
	Low    json.RawMessage `json:"low"`
	Volume json.RawMessage `json:"volume"`
	Time   json.RawMessage `json:"time"`
}

// unwrapData returns the "data" member of a {code,msg,data} envelope, or raw
// itself when the payload is not enveloped.
func unwrapData(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return trimmed
	}
	return env.Data
}

// decodeList accepts a bare array, an enveloped array, or an enveloped object
// holding the array under one of keys.
func decodeList(raw json.RawMessage, keys ...string) ([]json.RawMessage, error) {
	data := unwrapData(raw)
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	if data[0] == '[' {
		var rows []json.RawMessage
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if inner, ok := obj["data"]; ok && string(bytes.TrimSpace(inner)) == "null" {
		return nil, nil
	}
	for _, k := range keys {
		inner, ok := obj[k]
		if !ok || string(inner) == "null" {
			continue
		}
		var rows []json.RawMessage
		if err := json.Unmarshal(inner, &rows); err != nil {
			return nil, fmt.Errorf("decode %s: %w", k, err)
		}
		return rows, nil
	}
	return nil, fmt.Errorf("unexpected list payload: %s", truncate(data, 120))
}

// scalar renders a JSON string or number as plain text.
func scalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

func scalarDecimal(name string, raw json.RawMessage) (decimal.Decimal, error) {
	s := scalar(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%s missing", name)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s %q: %w", name, s, err)
	}
	return d, nil
}

func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	var resp tickerPriceResponse
	if err := json.Unmarshal(unwrapData(raw), &resp); err != nil {
		return decimal.Zero, err
	}
	return scalarDecimal("price", resp.Price)
}

func parseServerTime(raw json.RawMessage) (time.Time, error) {
	var resp serverTimeResponse
	if err := json.Unmarshal(unwrapData(raw), &resp); err != nil {
		return time.Time{}, err
	}
	if resp.ServerTime <= 0 {
		return time.Time{}, fmt.Errorf("serverTime missing")
	}
	return time.UnixMilli(resp.ServerTime), nil
}

// parseCandles accepts object rows ({open,close,high,low,volume,time}) or
// array rows ([time,open,high,low,close,volume,...]) and returns them oldest first.
func parseCandles(raw json.RawMessage) ([]core.Candle, error) {
	rows, err := decodeList(raw)
	if err != nil {
		return nil, err
	}
	candles := make([]core.Candle, 0, len(rows))
	for i, row := range rows {
		var fields candleRow
		row = bytes.TrimSpace(row)
		if len(row) > 0 && row[0] == '[' {
			var cols []json.RawMessage
			if err := json.Unmarshal(row, &cols); err != nil {
				return nil, fmt.Errorf("candle %d: %w", i, err)
			}
			if len(cols) < 6 {
				return nil, fmt.Errorf("candle %d: want 6 columns, got %d", i, len(cols))
			}
			fields = candleRow{Time: cols[0], Open: cols[1], High: cols[2], Low: cols[3], Close: cols[4], Volume: cols[5]}
		} else if err := json.Unmarshal(row, &fields); err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		c, err := fields.toCandle()
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	return candles, nil
}

func (r candleRow) toCandle() (core.Candle, error) {
	ms, err := strconv.ParseInt(scalar(r.Time), 10, 64)
	if err != nil {
		return core.Candle{}, fmt.Errorf("time: %w", err)
	}
	c := core.Candle{OpenTime: time.UnixMilli(ms)}
	for _, f := range []struct {
		name string
		raw  json.RawMessage
		dst  *decimal.Decimal
	}{
		{"open", r.Open, &c.Open},
		{"high", r.High, &c.High},
		{"low", r.Low, &c.Low},
		{"close", r.Close, &c.Close},
		{"volume", r.Volume, &c.Volume},
	} {
		v, err := scalarDecimal(f.name, f.raw)
		if err != nil {
			return core.Candle{}, err
		}
		*f.dst = v
	}
	return c, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
