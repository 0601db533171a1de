package ledger

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/rotor/internal/domain"
)

type journalMock struct {
	mock.Mock
}

func (m *journalMock) Write(entry domain.Entry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *journalMock) Close() error {
	return m.Called().Error(0)
}

func buyEntry(asset string) domain.Entry {
	return domain.NewEntry(domain.EntryKindBuy, asset, domain.OutcomeExecuted).
		WithQuote("usd").
		WithTrade(decimal.RequireFromString("0.001"), decimal.NewFromInt(50), decimal.NewFromInt(50000))
}

func TestLedger_AppendSealsAndOrders(t *testing.T) {
	l := New(nil, zap.NewNop())

	assert.Equal(t, 1, l.Append(buyEntry("btc")))
	assert.Equal(t, 2, l.Append(domain.NewEntry(domain.EntryKindCycle, "", domain.OutcomeSkipped).WithNote("balance unavailable")))

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Bought 0.001 btc for USD", entries[0].Message)
	assert.Equal(t, "Skipped cycle: balance unavailable", entries[1].Message)
}

func TestLedger_EntriesAfter(t *testing.T) {
	l := New(nil, nil)
	for _, asset := range []string{"btc", "eth", "xrp"} {
		l.Append(buyEntry(asset))
	}

	tests := []struct {
		name   string
		offset int
		assets []string
	}{
		{name: "from start", offset: 0, assets: []string{"btc", "eth", "xrp"}},
		{name: "tail", offset: 2, assets: []string{"xrp"}},
		{name: "past end", offset: 5, assets: []string{}},
		{name: "negative", offset: -1, assets: []string{"btc", "eth", "xrp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.EntriesAfter(tt.offset)
			assets := make([]string, 0, len(got))
			for _, e := range got {
				assets = append(assets, e.Asset)
			}
			assert.Equal(t, tt.assets, assets)
		})
	}
}

func TestLedger_EntriesIsACopy(t *testing.T) {
	l := New(nil, nil)
	l.Append(buyEntry("btc"))

	entries := l.Entries()
	entries[0].Asset = "eth"

	assert.Equal(t, "btc", l.Entries()[0].Asset)
}

func TestLedger_JournalFailureKeepsEntry(t *testing.T) {
	j := &journalMock{}
	j.On("Write", mock.AnythingOfType("domain.Entry")).Return(errors.New("disk full")).Once()
	j.On("Write", mock.AnythingOfType("domain.Entry")).Return(nil).Once()

	l := New(j, zap.NewNop())
	l.Append(buyEntry("btc"))
	l.Append(buyEntry("eth"))

	assert.Equal(t, 2, l.Len())
	j.AssertNumberOfCalls(t, "Write", 2)
}

func TestLedger_ConcurrentReadersSeePrefix(t *testing.T) {
	l := New(nil, nil)
	const total = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			l.Append(domain.NewEntry(domain.EntryKindBuy, "btc", domain.OutcomeExecuted).
				WithTrade(decimal.NewFromInt(int64(i)), decimal.Zero, decimal.Zero))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			last := 0
			for last < total {
				entries := l.Entries()
				assert.GreaterOrEqual(t, len(entries), last)
				for i, e := range entries {
					if !e.Amount.Equal(decimal.NewFromInt(int64(i))) {
						t.Errorf("entry %d out of order: %s", i, e.Amount)
						return
					}
				}
				last = len(entries)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, total, l.Len())
}

func TestOpen_RestoresFromWAL(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	l.Append(buyEntry("btc"))
	l.Append(domain.NewEntry(domain.EntryKindSell, "doge", domain.OutcomeRejected).WithNote("insufficient balance"))
	require.NoError(t, l.Close())

	reopened, err := Open(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	entries := reopened.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "btc", entries[0].Asset)
	assert.Equal(t, domain.OutcomeExecuted, entries[0].Outcome)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, "doge", entries[1].Asset)
	assert.Equal(t, domain.OutcomeRejected, entries[1].Outcome)
	assert.NotEmpty(t, entries[1].Message)

	reopened.Append(buyEntry("eth"))
	assert.Equal(t, 3, reopened.Len())
}

func TestOpen_InMemory(t *testing.T) {
	l, err := Open("", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
	assert.NoError(t, l.Close())
}

func TestLedger_SubscribeNotifiesOnAppend(t *testing.T) {
	l := New(nil, nil)
	ch := l.Subscribe()
	defer l.Unsubscribe(ch)

	l.Append(buyEntry("btc"))

	select {
	case e := <-ch:
		assert.Equal(t, "btc", e.Asset)
		assert.Equal(t, "Bought 0.001 btc for USD", e.Message)
	default:
		t.Fatal("append did not notify subscriber")
	}
}
