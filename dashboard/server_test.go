package dashboard

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal"
	"github.com/vadiminshakov/rotor/internal/domain"
	"github.com/vadiminshakov/rotor/internal/events"
)

type fakeBot struct {
	mu      sync.Mutex
	balance *domain.BalanceSnapshot
	entries []domain.Entry
	appends *events.EntryBroadcaster
}

func (f *fakeBot) State(context.Context) internal.State {
	return internal.State{LatestAction: "diversify: buy btc for 50.00", Balance: f.balance, Transactions: f.Transactions()}
}

func (f *fakeBot) Transactions() []domain.Entry { return f.TransactionsAfter(0) }

func (f *fakeBot) TransactionsAfter(offset int) []domain.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if offset >= len(f.entries) {
		return nil
	}
	return append([]domain.Entry(nil), f.entries[offset:]...)
}

func (f *fakeBot) append(e domain.Entry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
	f.broadcaster().Publish(e)
}

func (f *fakeBot) broadcaster() *events.EntryBroadcaster {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appends == nil {
		f.appends = events.NewEntryBroadcaster(8)
	}
	return f.appends
}

func (f *fakeBot) SubscribeTransactions() <-chan domain.Entry {
	return f.broadcaster().Subscribe()
}

func (f *fakeBot) UnsubscribeTransactions(ch <-chan domain.Entry) {
	f.broadcaster().Unsubscribe(ch)
}

func entries(assets ...string) []domain.Entry {
	out := make([]domain.Entry, 0, len(assets))
	for _, a := range assets {
		out = append(out, domain.NewEntry(domain.EntryKindBuy, a, domain.OutcomeExecuted).
			WithQuote("usd").
			WithTrade(decimal.RequireFromString("0.1"), decimal.NewFromInt(10), decimal.NewFromInt(100)).
			Seal())
	}
	return out
}

func TestServer_State(t *testing.T) {
	snap := domain.NewBalanceSnapshot(time.Now(), "usd", decimal.NewFromInt(50), map[string]decimal.Decimal{
		"btc": decimal.RequireFromString("0.001"),
	})

	tests := []struct {
		name        string
		path        string
		balance     *domain.BalanceSnapshot
		wantBalance bool
	}{
		{name: "state with balance", path: "/api/state", balance: &snap, wantBalance: true},
		{name: "state exchange down", path: "/api/state", balance: nil, wantBalance: false},
		{name: "dashboard route", path: "/dashboard", balance: &snap, wantBalance: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", &fakeBot{balance: tt.balance, entries: entries("btc")}, zap.NewNop())

			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.JSONEq(t, `"diversify: buy btc for 50.00"`, string(body["latest_action"]))
			if tt.wantBalance {
				assert.Contains(t, string(body["balance"]), `"quote":"usd"`)
			} else {
				assert.Equal(t, "null", string(body["balance"]))
			}

			var txs []domain.Entry
			require.NoError(t, json.Unmarshal(body["transactions"], &txs))
			require.Len(t, txs, 1)
			assert.Equal(t, "btc", txs[0].Asset)
		})
	}
}

func TestServer_Transactions(t *testing.T) {
	srv := NewServer(":0", &fakeBot{entries: entries("btc", "eth")}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []domain.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txs))
	require.Len(t, txs, 2)
	assert.Equal(t, "Bought 0.1 eth for USD", txs[1].Message)
}

func TestServer_ReadOnly(t *testing.T) {
	srv := NewServer(":0", &fakeBot{}, nil)

	for _, p := range []string{"/api/state", "/api/transactions", "/dashboard"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, p, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, p)
	}
}

func TestServer_StaticIndex(t *testing.T) {
	srv := NewServer(":0", &fakeBot{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/transactions/stream")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	html, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<title>rotor</title>")
}

func TestServer_Metrics(t *testing.T) {
	srv := NewServer(":0", &fakeBot{}, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rotor_active_holdings")
}

func TestServer_TransactionStreamResumes(t *testing.T) {
	srv := NewServer(":0", &fakeBot{entries: entries("btc", "eth", "xrp")}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/transactions/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var ids, assets []string
	scanner := bufio.NewScanner(resp.Body)
	for len(assets) < 2 && scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			ids = append(ids, strings.TrimPrefix(line, "id: "))
		case strings.HasPrefix(line, "data: "):
			var e domain.Entry
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
			assets = append(assets, e.Asset)
		}
	}

	assert.Equal(t, []string{"2", "3"}, ids)
	assert.Equal(t, []string{"eth", "xrp"}, assets)
}

func TestServer_TransactionStreamStaleLastEventID(t *testing.T) {
	bot := &fakeBot{entries: entries("btc", "eth")}
	ts := httptest.NewServer(NewServer(":0", bot, nil).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/transactions/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "5")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var ids, assets []string
	scanner := bufio.NewScanner(resp.Body)
	for len(assets) < 3 && scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id: "):
			ids = append(ids, strings.TrimPrefix(line, "id: "))
		case strings.HasPrefix(line, "data: "):
			var e domain.Entry
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
			assets = append(assets, e.Asset)
			if len(assets) == 2 {
				bot.append(entries("xrp")[0])
			}
		}
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids)
	assert.Equal(t, []string{"btc", "eth", "xrp"}, assets)
}

func TestServer_TransactionStreamPushesAppends(t *testing.T) {
	bot := &fakeBot{}
	ts := httptest.NewServer(NewServer(":0", bot, nil).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/transactions/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	var asset string
	for asset == "" && scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "event: no_data":
			bot.append(entries("doge")[0])
		case strings.HasPrefix(line, "data: ") && line != "data: {}":
			var e domain.Entry
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
			asset = e.Asset
		}
	}

	assert.Equal(t, "doge", asset)
}

func TestParseLastEventID(t *testing.T) {
	srv := NewServer(":0", &fakeBot{}, nil)

	tests := []struct {
		header, query string
		want          int
	}{
		{"", "", 0},
		{"5", "", 5},
		{"", "7", 7},
		{"3", "9", 3},
		{"abc", "", 0},
		{"-2", "", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, srv.parseLastEventID(tt.header, tt.query), "%q/%q", tt.header, tt.query)
	}
}
