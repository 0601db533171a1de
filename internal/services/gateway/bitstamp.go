package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/clients"
	"github.com/vadiminshakov/rotor/internal/domain"
)

const (
	availableSuffix = "_available"
	balanceSuffix   = "_balance"
	tradingEnabled  = "Enabled"
	statusError     = "error"
)

type bitstampAPI interface {
	Get(ctx context.Context, path string) (*clients.Response, error)
	PostSigned(ctx context.Context, path string, values url.Values) (*clients.Response, error)
}

// BitstampGateway implements Gateway over the Bitstamp v2 REST API.
type BitstampGateway struct {
	client bitstampAPI
	quote  string
	logger *zap.Logger

	mu    sync.RWMutex
	pairs map[string]domain.PairInfo
}

// NewBitstampGateway creates a gateway quoting everything in quote (e.g. usd).
func NewBitstampGateway(client bitstampAPI, quote string, logger *zap.Logger) *BitstampGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BitstampGateway{
		client: client,
		quote:  strings.ToLower(quote),
		logger: logger,
		pairs:  make(map[string]domain.PairInfo),
	}
}

// FetchBalance returns the available funds of the account.
func (g *BitstampGateway) FetchBalance(ctx context.Context) (domain.BalanceSnapshot, error) {
	resp, err := g.client.PostSigned(ctx, "balance", nil)
	if err != nil {
		return domain.BalanceSnapshot{}, unavailable(err, "fetch balance")
	}
	if !resp.OK() {
		return domain.BalanceSnapshot{}, unavailable(nil, "fetch balance: status %d: %s", resp.StatusCode, truncate(resp.Body))
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return domain.BalanceSnapshot{}, unavailable(err, "fetch balance: malformed body")
	}
	if status, _ := raw["status"].(string); status == statusError {
		return domain.BalanceSnapshot{}, unavailable(nil, "fetch balance: %s", reasonText(raw["reason"]))
	}

	available := make(map[string]decimal.Decimal)
	totals := make(map[string]decimal.Decimal)
	for key, value := range raw {
		var (
			asset  string
			target map[string]decimal.Decimal
		)
		switch {
		case strings.HasSuffix(key, availableSuffix):
			asset, target = strings.TrimSuffix(key, availableSuffix), available
		case strings.HasSuffix(key, balanceSuffix):
			asset, target = strings.TrimSuffix(key, balanceSuffix), totals
		default:
			continue
		}
		qty, err := decimalFromJSON(value)
		if err != nil {
			return domain.BalanceSnapshot{}, unavailable(err, "fetch balance: field %s", key)
		}
		target[strings.ToLower(asset)] = qty
	}
	// older accounts only report totals
	for asset, qty := range totals {
		if _, ok := available[asset]; !ok {
			available[asset] = qty
		}
	}

	quoteQty := available[g.quote]
	return domain.NewBalanceSnapshot(time.Now().UTC(), g.quote, quoteQty, available), nil
}

// FetchPrice returns the last trade price rounded to the pair's precision.
func (g *BitstampGateway) FetchPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	resp, err := g.client.Get(ctx, "ticker/"+pair.Symbol())
	if err != nil {
		return decimal.Decimal{}, unavailable(err, "fetch price %s", pair.Symbol())
	}
	if !resp.OK() {
		return decimal.Decimal{}, unavailable(nil, "fetch price %s: status %d", pair.Symbol(), resp.StatusCode)
	}

	var ticker struct {
		Last json.RawMessage `json:"last"`
	}
	if err := json.Unmarshal(resp.Body, &ticker); err != nil {
		return decimal.Decimal{}, unavailable(err, "fetch price %s: malformed body", pair.Symbol())
	}
	price, err := decimalFromRaw(ticker.Last)
	if err != nil {
		return decimal.Decimal{}, unavailable(err, "fetch price %s: field last", pair.Symbol())
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, unavailable(nil, "fetch price %s: non-positive price %s", pair.Symbol(), price.String())
	}

	return RoundPrice(price, g.precision(pair.Symbol())), nil
}

type tradingPairInfo struct {
	Name            string `json:"name"`
	URLSymbol       string `json:"url_symbol"`
	BaseDecimals    int32  `json:"base_decimals"`
	CounterDecimals int32  `json:"counter_decimals"`
	MinimumOrder    string `json:"minimum_order"`
	Trading         string `json:"trading"`
}

// ListTradablePairs returns enabled pairs keyed by url symbol and caches their precision.
func (g *BitstampGateway) ListTradablePairs(ctx context.Context) (map[string]domain.PairInfo, error) {
	resp, err := g.client.Get(ctx, "trading-pairs-info")
	if err != nil {
		return nil, unavailable(err, "list trading pairs")
	}
	if !resp.OK() {
		return nil, unavailable(nil, "list trading pairs: status %d", resp.StatusCode)
	}

	var infos []tradingPairInfo
	if err := json.Unmarshal(resp.Body, &infos); err != nil {
		return nil, unavailable(err, "list trading pairs: malformed body")
	}

	pairs := make(map[string]domain.PairInfo, len(infos))
	for _, info := range infos {
		if info.Trading != tradingEnabled || info.URLSymbol == "" {
			continue
		}
		pairs[info.URLSymbol] = domain.PairInfo{
			Symbol:          info.URLSymbol,
			BaseDecimals:    info.BaseDecimals,
			CounterDecimals: info.CounterDecimals,
			MinimumOrder:    info.MinimumOrder,
		}
	}

	g.mu.Lock()
	g.pairs = pairs
	g.mu.Unlock()

	g.logger.Debug("tradable pairs loaded", zap.Int("count", len(pairs)))

	cp := make(map[string]domain.PairInfo, len(pairs))
	for k, v := range pairs {
		cp[k] = v
	}
	return cp, nil
}

// SubmitOrder sends the order once. Exchange refusals come back as a rejected result.
func (g *BitstampGateway) SubmitOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	path := string(order.Side) + "/"
	if order.Type == domain.OrderTypeMarket {
		path += "market/"
	}
	path += order.Pair.Symbol()

	values := url.Values{}
	values.Set("amount", order.Amount.String())
	if order.Type != domain.OrderTypeMarket {
		values.Set("price", RoundPrice(order.Price, g.precision(order.Pair.Symbol())).String())
	}
	if order.ClientOrderID != "" {
		values.Set("client_order_id", order.ClientOrderID)
	}

	resp, err := g.client.PostSigned(ctx, path, values)
	if err != nil {
		return domain.OrderResult{}, unavailable(err, "submit %s", order.String())
	}

	raw, err := decodeOrderBody(resp.Body)
	if err != nil {
		if !resp.OK() {
			return domain.OrderResult{}, unavailable(nil, "submit %s: status %d", order.String(), resp.StatusCode)
		}
		return domain.OrderResult{}, unavailable(err, "submit %s: malformed body", order.String())
	}

	if status, _ := raw["status"].(string); status == statusError || !resp.OK() {
		reason := reasonText(raw["reason"])
		if reason == "" {
			reason = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return domain.OrderResult{Accepted: false, Reason: reason}, nil
	}

	ref := ""
	if id, ok := raw["id"]; ok && id != nil {
		ref = fmt.Sprint(id)
	}
	if ref == "" {
		return domain.OrderResult{}, unavailable(nil, "submit %s: response without order id", order.String())
	}

	return domain.OrderResult{Accepted: true, Reference: ref}, nil
}

// decodeOrderBody keeps numbers as json.Number so order ids survive with all their digits.
func decodeOrderBody(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *BitstampGateway) precision(symbol string) int32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if info, ok := g.pairs[symbol]; ok {
		return info.CounterDecimals
	}
	return -1
}

func decimalFromJSON(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		return decimal.NewFromString(val)
	case float64:
		return decimal.NewFromFloat(val), nil
	case nil:
		return decimal.Zero, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected type %T", v)
	}
}

func decimalFromRaw(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 {
		return decimal.Decimal{}, fmt.Errorf("missing value")
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return decimal.Decimal{}, err
	}
	if v == nil {
		return decimal.Decimal{}, fmt.Errorf("missing value")
	}
	return decimalFromJSON(v)
}

// reasonText flattens Bitstamp's reason, which is either a string or a map of field errors.
func reasonText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, reasonText(item))
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			text := reasonText(val[k])
			if k != "__all__" {
				text = k + ": " + text
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
