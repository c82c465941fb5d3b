package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityOf(9))
	assert.Equal(t, SeverityHigh, SeverityOf(7))
	assert.Equal(t, SeverityHigh, SeverityOf(8.9))
	assert.Equal(t, SeverityInfo, SeverityOf(6.99))
}

func TestNewAlert_SnapshotsTrade(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Market{ConditionID: "0xc", Question: "Will it rain?", Slug: "will-it-rain"}
	tr := Trade{ID: "t1", Wallet: "0xw", Market: "0xc", TokenID: "tok", Side: SideBuy, Price: 0.4, Size: 5000, Timestamp: now.Add(-time.Minute)}
	score := SuspicionScore{Value: 8, Reasons: []string{"Brand new wallet (< 1 day old)"}}

	a := NewAlert(m, tr, score, WalletStats{Address: "0xw"}, now)

	require.NoError(t, a.Validate())
	assert.Equal(t, "Will it rain?", a.MarketTitle)
	assert.InDelta(t, 2000.0, a.Trade.ValueUSD, 1e-9)
	assert.InDelta(t, 0.4, a.CurrentPrice, 1e-9)
	assert.Equal(t, SeverityHigh, a.Severity())
}

func TestAlert_ValidateRejectsMalformed(t *testing.T) {
	a := Alert{Timestamp: time.Now(), Wallet: "0xw", ConditionID: "0xc", Score: 7, CurrentPrice: 0.5}
	require.NoError(t, a.Validate())

	noCond := a
	noCond.ConditionID = ""
	assert.ErrorIs(t, noCond.Validate(), ErrInvalidRecord)

	noPrice := a
	noPrice.CurrentPrice = 0
	assert.ErrorIs(t, noPrice.Validate(), ErrInvalidRecord)

	noTime := a
	noTime.Timestamp = time.Time{}
	assert.ErrorIs(t, noTime.Validate(), ErrInvalidRecord)
}

func TestParseLabel(t *testing.T) {
	l, ok := ParseLabel("insider")
	assert.True(t, ok)
	assert.Equal(t, LabelInsider, l)

	_, ok = ParseLabel("maybe")
	assert.False(t, ok)
}
