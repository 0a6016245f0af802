// Package broker implements the OANDA v3 REST client.
//
// The client talks to the OANDA brokerage API for account and order operations:
//   - GetAccountBalance: GET /accounts/{id}/summary       — current balance
//   - GetInstruments:    GET /accounts/{id}/instruments   — tradable catalog
//   - GetQuote:          GET /instruments/{pair}/candles  — latest S5 bid/ask/mid
//   - PlaceMarketOrder:  POST /accounts/{id}/orders       — fill-or-kill market order
//   - GetOpenTrades:     GET /accounts/{id}/openTrades    — open positions
//   - CloseTrade:        PUT /accounts/{id}/trades/{id}/close
//
// Every request is paced through a per-category departure-slot limiter,
// automatically retried on 5xx errors, and authenticated with a bearer
// token. Prices and balances arrive as decimal strings and are parsed
// exactly before conversion.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"oanda-arb/internal/config"
	"oanda-arb/pkg/types"
)

const (
	practiceBaseURL = "https://api-fxpractice.oanda.com/v3"
	liveBaseURL     = "https://api-fxtrade.oanda.com/v3"

	// defaultBalanceFallback is returned when the account summary cannot be
	// fetched, so risk checks degrade instead of crashing the loop.
	defaultBalanceFallback = 10_000
)

// Client is the OANDA v3 REST API client.
// It wraps a resty HTTP client with rate limiting, retry, and auth.
type Client struct {
	http            *resty.Client // HTTP client with retry + base URL
	accountID       string
	rl              *RateLimiter
	balanceFallback float64
	logger          *slog.Logger
}

// NewClient creates a REST client pointed at the practice or live environment.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	baseURL := liveBaseURL
	if cfg.PracticeMode {
		baseURL = practiceBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:            httpClient,
		accountID:       cfg.AccountID,
		rl:              NewRateLimiter(),
		balanceFallback: defaultBalanceFallback,
		logger:          logger.With("component", "broker"),
	}
}

// GetAccountBalance fetches the current account balance. On any transport or
// parse failure it logs and returns the configured fallback — balance reads
// during risk checks are best-effort and must never stop the loop.
func (c *Client) GetAccountBalance(ctx context.Context) float64 {
	if err := c.rl.Account.Wait(ctx); err != nil {
		return c.balanceFallback
	}

	var result accountSummaryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/" + c.accountID + "/summary")
	if err != nil {
		c.logger.Warn("account summary failed, using fallback balance", "error", err)
		return c.balanceFallback
	}
	if resp.StatusCode() != http.StatusOK {
		c.logger.Warn("account summary failed, using fallback balance",
			"status", resp.StatusCode())
		return c.balanceFallback
	}

	balance, err := parseDecimal(result.Account.Balance)
	if err != nil {
		c.logger.Warn("unparseable account balance, using fallback",
			"balance", result.Account.Balance, "error", err)
		return c.balanceFallback
	}
	return balance
}

// GetInstruments fetches the tradable catalog, filtered to CURRENCY
// instruments named BASE_QUOTE.
func (c *Client) GetInstruments(ctx context.Context) ([]types.Instrument, error) {
	if err := c.rl.Account.Wait(ctx); err != nil {
		return nil, err
	}

	var result instrumentsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/" + c.accountID + "/instruments")
	if err != nil {
		return nil, fmt.Errorf("get instruments: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get instruments: status %d: %s", resp.StatusCode(), resp.String())
	}

	instruments := make([]types.Instrument, 0, len(result.Instruments))
	for _, in := range result.Instruments {
		if in.Type != "CURRENCY" || !strings.Contains(in.Name, "_") {
			continue
		}
		instruments = append(instruments, types.Instrument{Name: in.Name, Type: in.Type})
	}
	return instruments, nil
}

// GetQuote fetches the latest 5-second candle for a pair and returns its
// close bid/ask/mid as a Quote. Any non-OK response or parse miss is an
// error; callers drop the pair from the tick.
func (c *Client) GetQuote(ctx context.Context, pair types.Pair) (types.Quote, error) {
	if err := c.rl.Quote.Wait(ctx); err != nil {
		return types.Quote{}, err
	}

	var result candlesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"count":       "1",
			"price":       "MBA",
			"granularity": "S5",
		}).
		SetResult(&result).
		Get("/instruments/" + pair.Instrument() + "/candles")
	if err != nil {
		return types.Quote{}, fmt.Errorf("get quote %s: %w", pair, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.Quote{}, fmt.Errorf("get quote %s: status %d", pair, resp.StatusCode())
	}
	if len(result.Candles) == 0 {
		return types.Quote{}, fmt.Errorf("get quote %s: no candles returned", pair)
	}

	candle := result.Candles[len(result.Candles)-1]
	if candle.Bid == nil || candle.Ask == nil || candle.Mid == nil {
		return types.Quote{}, fmt.Errorf("get quote %s: incomplete candle", pair)
	}

	bid, err := parseDecimal(candle.Bid.Close)
	if err != nil {
		return types.Quote{}, fmt.Errorf("get quote %s: bid: %w", pair, err)
	}
	ask, err := parseDecimal(candle.Ask.Close)
	if err != nil {
		return types.Quote{}, fmt.Errorf("get quote %s: ask: %w", pair, err)
	}
	mid, err := parseDecimal(candle.Mid.Close)
	if err != nil {
		return types.Quote{}, fmt.Errorf("get quote %s: mid: %w", pair, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, candle.Time)
	if err != nil {
		return types.Quote{}, fmt.Errorf("get quote %s: time: %w", pair, err)
	}

	return types.Quote{
		Bid:    bid,
		Ask:    ask,
		Mid:    mid,
		Spread: ask - bid,
		Time:   ts,
	}, nil
}

// PlaceMarketOrder submits a fill-or-kill market order for the given pair.
// Units are truncated toward zero and always submitted positive; direction
// is implicit in the pair orientation. A 201 with an order fill transaction
// is the only success shape — anything else is an error.
func (c *Client) PlaceMarketOrder(ctx context.Context, pair types.Pair, units float64) (types.Fill, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.Fill{}, err
	}

	body := orderRequest{Order: orderBody{
		Units:        fmt.Sprintf("%d", int64(units)),
		Instrument:   pair.Instrument(),
		TimeInForce:  "FOK",
		Type:         "MARKET",
		PositionFill: "DEFAULT",
	}}

	var result orderCreateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/accounts/" + c.accountID + "/orders")
	if err != nil {
		return types.Fill{}, fmt.Errorf("place order %s: %w", pair, err)
	}
	if resp.StatusCode() != http.StatusCreated {
		return types.Fill{}, fmt.Errorf("place order %s: status %d: %s", pair, resp.StatusCode(), resp.String())
	}
	if result.OrderFillTransaction == nil {
		return types.Fill{}, fmt.Errorf("place order %s: order not filled", pair)
	}

	price, err := parseDecimal(result.OrderFillTransaction.Price)
	if err != nil {
		return types.Fill{}, fmt.Errorf("place order %s: fill price: %w", pair, err)
	}
	filledUnits, err := parseDecimal(result.OrderFillTransaction.Units)
	if err != nil {
		return types.Fill{}, fmt.Errorf("place order %s: fill units: %w", pair, err)
	}

	c.logger.Debug("order filled",
		"instrument", pair.Instrument(),
		"price", price,
		"units", filledUnits,
	)
	return types.Fill{Price: price, Units: filledUnits}, nil
}

// Trade is an open position reported by the broker.
type Trade struct {
	ID         string
	Instrument string
	Units      float64
	Price      float64
}

// GetOpenTrades lists currently open trades. Not on the hot path; used for
// operator inspection and shutdown diagnostics.
func (c *Client) GetOpenTrades(ctx context.Context) ([]Trade, error) {
	if err := c.rl.Account.Wait(ctx); err != nil {
		return nil, err
	}

	var result openTradesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/accounts/" + c.accountID + "/openTrades")
	if err != nil {
		return nil, fmt.Errorf("get open trades: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("get open trades: status %d", resp.StatusCode())
	}

	trades := make([]Trade, 0, len(result.Trades))
	for _, tr := range result.Trades {
		units, err := parseDecimal(tr.CurrentUnits)
		if err != nil {
			continue
		}
		price, err := parseDecimal(tr.Price)
		if err != nil {
			continue
		}
		trades = append(trades, Trade{
			ID:         tr.ID,
			Instrument: tr.Instrument,
			Units:      units,
			Price:      price,
		})
	}
	return trades, nil
}

// CloseTrade closes an open trade by ID.
func (c *Client) CloseTrade(ctx context.Context, tradeID string) (bool, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return false, err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Put("/accounts/" + c.accountID + "/trades/" + tradeID + "/close")
	if err != nil {
		return false, fmt.Errorf("close trade %s: %w", tradeID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("close trade %s: status %d", tradeID, resp.StatusCode())
	}
	return true, nil
}

// parseDecimal parses a broker decimal string exactly, then converts.
func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
