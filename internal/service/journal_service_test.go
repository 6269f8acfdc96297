package service

import (
	"context"
	"testing"

	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVoucher_Unbalanced(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	_, err := svc.CreateVoucher(context.Background(), &CreateVoucherRequest{
		Date: date(2024, 1, 15),
		Memo: "不平的凭证",
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("100")},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("90")},
		},
	})
	assert.ErrorIs(t, err, ErrUnbalanced)

	// 核心层拦截后什么都不落库
	var headerCount int64
	require.NoError(t, db.Model(&model.JournalHeader{}).Count(&headerCount).Error)
	assert.Equal(t, int64(0), headerCount)
}

func TestCreateVoucher_PostsAllLines(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	header, err := svc.CreateVoucher(ctx, &CreateVoucherRequest{
		VoucherNo: "J202401-0001",
		Date:      date(2024, 1, 15),
		Memo:      "一月现销",
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("1000000"), Narration: "收现"},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("1000000"), Narration: "销售"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "J202401-0001", header.VoucherNo)
	assert.Equal(t, 2024, header.Year)
	assert.Equal(t, 1, header.Month)
	requireDecEqual(t, dec("1000000"), header.TotalDebit)
	requireDecEqual(t, dec("1000000"), header.TotalCredit)

	cash := getBucket(t, db, "001.000.001", 2024, 1)
	requireDecEqual(t, dec("1000000"), cash.DebitTotal)
	revenue := getBucket(t, db, "020.001.001", 2024, 1)
	requireDecEqual(t, dec("1000000"), revenue.CreditTotal)

	voucher, err := svc.GetVoucher(ctx, "J202401-0001")
	require.NoError(t, err)
	require.Len(t, voucher.Lines, 2)
}

func TestCreateVoucher_GeneratesVoucherNo(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	header, err := svc.CreateVoucher(context.Background(), &CreateVoucherRequest{
		Date: date(2024, 2, 1),
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("10")},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("10")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, header.VoucherNo)
	assert.Equal(t, model.KindOrdinary, header.Kind)
}

func TestDeleteVoucher_RestoresBuckets(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)
	seedBucket(t, db, "001.000.001", 2024, 1, dec("7000"), dec("0"), dec("0"))

	header, err := svc.CreateVoucher(ctx, &CreateVoucherRequest{
		Date: date(2024, 1, 15),
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("500")},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("500")},
		},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVoucher(ctx, header.ID))

	// 桶还原、分录与凭证头都没了
	cash := getBucket(t, db, "001.000.001", 2024, 1)
	requireDecEqual(t, dec("7000"), cash.Opening)
	requireDecEqual(t, dec("0"), cash.DebitTotal)

	var headerCount, lineCount int64
	require.NoError(t, db.Model(&model.JournalHeader{}).Count(&headerCount).Error)
	require.NoError(t, db.Model(&model.JournalLine{}).Count(&lineCount).Error)
	assert.Equal(t, int64(0), headerCount)
	assert.Equal(t, int64(0), lineCount)
}

func TestDeleteHeader_GuardedByLines(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	header, err := svc.CreateVoucher(ctx, &CreateVoucherRequest{
		Date: date(2024, 1, 15),
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("1")},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("1")},
		},
	})
	require.NoError(t, err)

	// 名下有分录，引用保护拒绝
	err = svc.DeleteHeader(ctx, header.ID)
	assert.ErrorIs(t, err, repository.ErrHeaderHasLines)
}

func TestUpdateHeader_MovePeriodRepostsLines(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	header, err := svc.CreateVoucher(ctx, &CreateVoucherRequest{
		Date: date(2024, 1, 15),
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("300")},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("300")},
		},
	})
	require.NoError(t, err)

	newDate := date(2024, 2, 3)
	memo := "改到二月"
	require.NoError(t, svc.UpdateHeader(ctx, header.ID, &UpdateHeaderRequest{
		Date: &newDate,
		Memo: &memo,
	}))

	// 一月桶冲干净，二月桶接住全部发生额
	jan := getBucket(t, db, "001.000.001", 2024, 1)
	requireDecEqual(t, dec("0"), jan.DebitTotal)
	feb := getBucket(t, db, "001.000.001", 2024, 2)
	requireDecEqual(t, dec("300"), feb.DebitTotal)

	got := getHeader(t, db, header.ID)
	assert.Equal(t, 2, got.Month)
	assert.Equal(t, "改到二月", got.Memo)
	assert.Equal(t, "2024-02-03", got.Date.Format("2006-01-02"))
}

func TestUpdateHeader_MemoOnlyLeavesBuckets(t *testing.T) {
	db := newTestDB(t)
	svc := NewJournalService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	header, err := svc.CreateVoucher(ctx, &CreateVoucherRequest{
		Date: date(2024, 1, 15),
		Lines: []VoucherLineInput{
			{AccountCode: "001.000", Side: model.SideDebit, Amount: dec("300")},
			{AccountCode: "020.001", Side: model.SideCredit, Amount: dec("300")},
		},
	})
	require.NoError(t, err)

	memo := "只改摘要"
	require.NoError(t, svc.UpdateHeader(ctx, header.ID, &UpdateHeaderRequest{Memo: &memo}))

	jan := getBucket(t, db, "001.000.001", 2024, 1)
	requireDecEqual(t, dec("300"), jan.DebitTotal)
}
