package service

import (
	"context"
	"testing"

	"ledgersystem/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseMonth_FlowAccountResetsOpening(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)
	// 一月贷方发生 1,000,000 的收入科目
	seedBucket(t, db, "020.001.001", 2024, 1, dec("0"), dec("0"), dec("1000000"))

	require.NoError(t, svc.CloseMonth(ctx, 2024, 1))

	feb := getBucket(t, db, "020.001.001", 2024, 2)
	require.NotNil(t, feb)
	requireDecEqual(t, dec("0"), feb.Opening)
}

func TestCloseMonth_BalanceAccountCarriesEnding(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedBucket(t, db, "001.000.001", 2024, 3, dec("5000"), dec("1200"), dec("300"))

	require.NoError(t, svc.CloseMonth(ctx, 2024, 3))

	apr := getBucket(t, db, "001.000.001", 2024, 4)
	require.NotNil(t, apr)
	// 借方科目期末 = 期初 + 借方 - 贷方
	requireDecEqual(t, dec("5900"), apr.Opening)
}

func TestCloseMonth_RejectsDecemberAndZero(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	assert.ErrorIs(t, svc.CloseMonth(ctx, 2024, 12), ErrInvalidPeriod)
	assert.ErrorIs(t, svc.CloseMonth(ctx, 2024, 0), ErrInvalidPeriod)
	assert.ErrorIs(t, svc.CloseMonth(ctx, 2024, 13), ErrInvalidPeriod)
}

func TestCloseMonth_UnknownAccountFails(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	seedBucket(t, db, "999.999.999", 2024, 5, dec("100"), dec("0"), dec("0"))

	err := svc.CloseMonth(ctx, 2024, 5)
	assert.ErrorIs(t, err, ErrUnknownAccount)
	// 事务回滚，下月期初没有写入
	assert.Nil(t, getBucket(t, db, "999.999.999", 2024, 6))
}

func TestCloseYear_AssetCarriesToBothOpenings(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedBucket(t, db, "001.000.001", 2024, 12, dec("5000000"), dec("0"), dec("0"))

	require.NoError(t, svc.CloseYear(ctx, 2024))

	snapshot := getBucket(t, db, "001.000.001", 2025, 0)
	require.NotNil(t, snapshot)
	requireDecEqual(t, dec("5000000"), snapshot.Opening)

	jan := getBucket(t, db, "001.000.001", 2025, 1)
	require.NotNil(t, jan)
	requireDecEqual(t, dec("5000000"), jan.Opening)
}

func TestCloseYear_RetainedEarningsAbsorbsProfit(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	svc := NewClosingService(db, nil, cfg)
	ctx := context.Background()

	retained := cfg.Accounting.RetainedEarnings()
	profit := cfg.Accounting.CurrentProfit()

	seedAccount(t, db, retained, model.SideCredit, model.ClassEquity)
	seedAccount(t, db, profit, model.SideCredit, model.ClassEquity)

	// 未分配利润 12 月期末 10,000,000；本年利润 12 月期末 2,000,000
	seedBucket(t, db, retained, 2024, 12, dec("10000000"), dec("0"), dec("0"))
	seedBucket(t, db, profit, 2024, 12, dec("0"), dec("0"), dec("2000000"))

	require.NoError(t, svc.CloseYear(ctx, 2024))

	retainedNext := getBucket(t, db, retained, 2025, 1)
	require.NotNil(t, retainedNext)
	requireDecEqual(t, dec("12000000"), retainedNext.Opening)

	profitNext := getBucket(t, db, profit, 2025, 1)
	require.NotNil(t, profitNext)
	requireDecEqual(t, dec("0"), profitNext.Opening)

	// 0 月快照与 1 月期初一致
	retainedSnap := getBucket(t, db, retained, 2025, 0)
	requireDecEqual(t, dec("12000000"), retainedSnap.Opening)
}

func TestCloseYear_FlowAccountsReset(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)
	seedAccount(t, db, "050.001.001", model.SideDebit, model.ClassExpense)
	seedBucket(t, db, "020.001.001", 2024, 12, dec("0"), dec("0"), dec("900000"))
	seedBucket(t, db, "050.001.001", 2024, 12, dec("0"), dec("400000"), dec("0"))

	require.NoError(t, svc.CloseYear(ctx, 2024))

	requireDecEqual(t, dec("0"), getBucket(t, db, "020.001.001", 2025, 1).Opening)
	requireDecEqual(t, dec("0"), getBucket(t, db, "050.001.001", 2025, 1).Opening)
	requireDecEqual(t, dec("0"), getBucket(t, db, "020.001.001", 2025, 0).Opening)
}

func TestCloseYear_ProfitWithoutRetainedBucket(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	svc := NewClosingService(db, nil, cfg)
	ctx := context.Background()

	retained := cfg.Accounting.RetainedEarnings()
	profit := cfg.Accounting.CurrentProfit()

	seedAccount(t, db, retained, model.SideCredit, model.ClassEquity)
	seedAccount(t, db, profit, model.SideCredit, model.ClassEquity)

	// 未分配利润本年没有任何发生额，连 12 月桶都没有——利润仍不能丢
	seedBucket(t, db, profit, 2024, 12, dec("0"), dec("0"), dec("300000"))

	require.NoError(t, svc.CloseYear(ctx, 2024))

	retainedNext := getBucket(t, db, retained, 2025, 1)
	require.NotNil(t, retainedNext)
	requireDecEqual(t, dec("300000"), retainedNext.Opening)
}

func TestCloseMonth_WritesOutboxEvent(t *testing.T) {
	db := newTestDB(t)
	cfg := testCfg()
	cfg.Kafka.Topic.PeriodClosed = "ledger.period.closed"
	svc := NewClosingService(db, nil, cfg)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedBucket(t, db, "001.000.001", 2024, 6, dec("100"), dec("0"), dec("0"))

	require.NoError(t, svc.CloseMonth(ctx, 2024, 6))

	var messages []model.OutboxMessage
	require.NoError(t, db.Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, "ledger.period.closed", messages[0].Topic)
}

func TestTrialBalance(t *testing.T) {
	db := newTestDB(t)
	svc := NewClosingService(db, nil, testCfg())
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedBucket(t, db, "001.000.001", 2024, 1, dec("5000"), dec("1200"), dec("300"))
	// 科目表外的桶被跳过
	seedBucket(t, db, "999.999.999", 2024, 1, dec("1"), dec("0"), dec("0"))

	rows, err := svc.TrialBalance(ctx, 2024, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "001.000.001", rows[0].AccountCode)
	requireDecEqual(t, dec("5900"), rows[0].Ending)

	_, err = svc.TrialBalance(ctx, 2024, 13)
	assert.Error(t, err)
}
