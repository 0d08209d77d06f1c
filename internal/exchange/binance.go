package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/spot-trend-trader/internal/candle"
	"github.com/amirphl/spot-trend-trader/internal/tfutils"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceClient is a spot REST client for Binance. Candle intervals map
// one-to-one onto the engine's timeframe strings.
type BinanceClient struct {
	apiKey     string
	secretKey  string
	baseURL    string
	httpClient *http.Client
	policy     Policy
}

// NewBinanceClient creates a Binance spot client. An empty baseURL selects
// the production endpoint.
func NewBinanceClient(apiKey, secretKey, baseURL string) *BinanceClient {
	if baseURL == "" {
		baseURL = binanceBaseURL
	}
	return &BinanceClient{
		apiKey:     apiKey,
		secretKey:  secretKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     DefaultPolicy(),
	}
}

func (b *BinanceClient) Name() string { return "binance" }

// apiError is the error payload Binance returns alongside non-2xx statuses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// classify maps an HTTP response to the transient/fatal taxonomy. Rejected
// credentials are fatal; rate limits and server errors are transient.
func classify(op string, status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Fatal(op, fmt.Errorf("API error %d: %s", status, string(body)))
	case ae.Code == -2014 || ae.Code == -2015 || ae.Code == -1022:
		// Bad API key format, rejected key, or bad signature.
		return Fatal(op, fmt.Errorf("API error %d: %s", ae.Code, ae.Msg))
	default:
		return Transient(op, fmt.Errorf("API error %d: %s", status, string(body)))
	}
}

func (b *BinanceClient) get(ctx context.Context, op, path string, params url.Values, signed bool, out any) error {
	return b.request(ctx, op, http.MethodGet, path, params, signed, out)
}

func (b *BinanceClient) request(ctx context.Context, op, method, path string, params url.Values, signed bool, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("signature", b.sign(params))
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, nil)
	if err != nil {
		return Fatal(op, err)
	}
	req.URL.RawQuery = encodeSigned(params)
	if b.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		if IsCanceled(err) {
			return err
		}
		return Transient(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Transient(op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return classify(op, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return Transient(op, fmt.Errorf("parsing response: %w", err))
		}
	}
	return nil
}

// sign computes the HMAC-SHA256 of the encoded query, excluding any
// previous signature parameter.
func (b *BinanceClient) sign(params url.Values) string {
	clone := url.Values{}
	for k, vs := range params {
		if k == "signature" {
			continue
		}
		for _, v := range vs {
			clone.Add(k, v)
		}
	}
	mac := hmac.New(sha256.New, []byte(b.secretKey))
	mac.Write([]byte(clone.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeSigned keeps the signature as the final query parameter, the order
// Binance verifies against.
func encodeSigned(params url.Values) string {
	sig := params.Get("signature")
	if sig == "" {
		return params.Encode()
	}
	clone := url.Values{}
	for k, vs := range params {
		if k == "signature" {
			continue
		}
		for _, v := range vs {
			clone.Add(k, v)
		}
	}
	return clone.Encode() + "&signature=" + sig
}

func (b *BinanceClient) FetchLatestCandles(ctx context.Context, symbol, timeframe string, count int) ([]candle.Candle, error) {
	if !tfutils.IsValidTimeframe(timeframe) {
		return nil, Fatal("FetchLatestCandles", fmt.Errorf("unsupported timeframe: %s", timeframe))
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(count))

	var rawKlines [][]any
	err := b.policy.Do(ctx, "FetchLatestCandles", func() error {
		rawKlines = nil
		return b.get(ctx, "FetchLatestCandles", "/api/v3/klines", params, false, &rawKlines)
	})
	if err != nil {
		return nil, err
	}

	candles := make([]candle.Candle, 0, len(rawKlines))
	for _, raw := range rawKlines {
		if len(raw) < 6 {
			continue
		}
		openTime, ok := raw[0].(float64)
		if !ok {
			continue
		}
		c := candle.Candle{
			OpenTime: time.UnixMilli(int64(openTime)).UTC(),
			Open:     parseFloat(raw[1]),
			High:     parseFloat(raw[2]),
			Low:      parseFloat(raw[3]),
			Close:    parseFloat(raw[4]),
			Volume:   parseFloat(raw[5]),
		}
		if err := c.Validate(); err != nil {
			continue // Skip invalid candles
		}
		candles = append(candles, c)
	}
	return candles, nil
}

func (b *BinanceClient) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var priceResp struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price,string"`
	}
	err := b.policy.Do(ctx, "FetchPrice", func() error {
		return b.get(ctx, "FetchPrice", "/api/v3/ticker/price", params, false, &priceResp)
	})
	if err != nil {
		return 0, err
	}
	return priceResp.Price, nil
}

func (b *BinanceClient) FetchBalance(ctx context.Context, asset string) (Balance, error) {
	var account struct {
		Balances []struct {
			Asset  string  `json:"asset"`
			Free   float64 `json:"free,string"`
			Locked float64 `json:"locked,string"`
		} `json:"balances"`
	}
	err := b.policy.Do(ctx, "FetchBalance", func() error {
		return b.get(ctx, "FetchBalance", "/api/v3/account", nil, true, &account)
	})
	if err != nil {
		return Balance{}, err
	}

	for _, bal := range account.Balances {
		if bal.Asset == asset {
			return Balance{Asset: asset, Available: bal.Free, Locked: bal.Locked}, nil
		}
	}
	return Balance{Asset: asset}, nil
}

func (b *BinanceClient) FetchConstraints(ctx context.Context, symbol string) (Constraints, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var info struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				MinNotional string `json:"minNotional"`
				StepSize    string `json:"stepSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	err := b.policy.Do(ctx, "FetchConstraints", func() error {
		return b.get(ctx, "FetchConstraints", "/api/v3/exchangeInfo", params, false, &info)
	})
	if err != nil {
		return Constraints{}, err
	}

	c := Constraints{MinNotional: DefaultMinNotional, StepSize: DefaultStepSize}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "NOTIONAL", "MIN_NOTIONAL":
				if v, err := strconv.ParseFloat(f.MinNotional, 64); err == nil && v > 0 {
					c.MinNotional = v
				}
			case "LOT_SIZE":
				if v, err := strconv.ParseFloat(f.StepSize, 64); err == nil && v > 0 {
					c.StepSize = v
				}
			}
		}
	}
	return c, nil
}

func (b *BinanceClient) PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (Fill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(quantity, 'f', -1, 64))

	var orderResp struct {
		Symbol              string  `json:"symbol"`
		OrderId             int64   `json:"orderId"`
		Price               float64 `json:"price,string"`
		ExecutedQty         float64 `json:"executedQty,string"`
		CummulativeQuoteQty float64 `json:"cummulativeQuoteQty,string"`
		Status              string  `json:"status"`
	}
	// Order placement is not retried here: a timed-out submit may still
	// have executed, so the caller decides how to re-attempt.
	if err := b.request(ctx, "PlaceMarketOrder", http.MethodPost, "/api/v3/order", params, true, &orderResp); err != nil {
		return Fill{}, err
	}

	if !strings.EqualFold(orderResp.Status, "FILLED") {
		return Fill{}, Transient("PlaceMarketOrder", fmt.Errorf("order %d not filled: status %s", orderResp.OrderId, orderResp.Status))
	}

	fillPrice := orderResp.Price
	if orderResp.ExecutedQty > 0 && orderResp.CummulativeQuoteQty > 0 {
		fillPrice = orderResp.CummulativeQuoteQty / orderResp.ExecutedQty
	}
	if fillPrice <= 0 {
		p, err := b.FetchPrice(ctx, symbol)
		if err != nil {
			return Fill{}, err
		}
		fillPrice = p
	}

	qty := orderResp.ExecutedQty
	if qty <= 0 {
		qty = quantity
	}
	return Fill{
		OrderID:  strconv.FormatInt(orderResp.OrderId, 10),
		Price:    fillPrice,
		Quantity: qty,
	}, nil
}

func parseFloat(v any) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}
