package service

import (
	"context"
	"testing"

	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertLine_PostsToBucketAndHeader(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)
	ctx := context.Background()

	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)
	header := seedHeader(t, db, date(2024, 1, 15))

	lineID, err := svc.InsertLine(ctx, &LineInput{
		HeaderID:    header.ID,
		AccountCode: "020.001",
		Side:        model.SideCredit,
		Amount:      dec("1000000"),
		Narration:   "一月销售",
	})
	require.NoError(t, err)
	assert.Greater(t, lineID, int64(0))

	// 桶按需创建并累加贷方发生额
	bucket := getBucket(t, db, "020.001.001", 2024, 1)
	require.NotNil(t, bucket)
	requireDecEqual(t, dec("0"), bucket.Opening)
	requireDecEqual(t, dec("0"), bucket.DebitTotal)
	requireDecEqual(t, dec("1000000"), bucket.CreditTotal)
	requireDecEqual(t, dec("1000000"), bucket.Ending(model.SideCredit))

	// 凭证头聚合同步维护
	got := getHeader(t, db, header.ID)
	requireDecEqual(t, dec("0"), got.TotalDebit)
	requireDecEqual(t, dec("1000000"), got.TotalCredit)
}

func TestInsertLine_HeaderNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)

	seedAccount(t, db, "020.001.001", model.SideCredit, model.ClassRevenue)

	_, err := svc.InsertLine(context.Background(), &LineInput{
		HeaderID:    9999,
		AccountCode: "020.001",
		Side:        model.SideCredit,
		Amount:      dec("100"),
	})
	assert.ErrorIs(t, err, repository.ErrHeaderNotFound)

	// 整体回滚，不留分录
	var count int64
	require.NoError(t, db.Model(&model.JournalLine{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestInsertLine_UnknownAccount(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)
	header := seedHeader(t, db, date(2024, 1, 15))

	_, err := svc.InsertLine(context.Background(), &LineInput{
		HeaderID:    header.ID,
		AccountCode: "777.001",
		Side:        model.SideDebit,
		Amount:      dec("100"),
	})
	assert.ErrorIs(t, err, ErrUnknownAccount)

	// 整体回滚，不留分录也不建桶
	var lineCount, bucketCount int64
	require.NoError(t, db.Model(&model.JournalLine{}).Count(&lineCount).Error)
	require.NoError(t, db.Model(&model.BalanceBucket{}).Count(&bucketCount).Error)
	assert.Equal(t, int64(0), lineCount)
	assert.Equal(t, int64(0), bucketCount)
}

func TestInsertLine_NegativeAmount(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)

	_, err := svc.InsertLine(context.Background(), &LineInput{
		HeaderID:    1,
		AccountCode: "020.001",
		Side:        model.SideDebit,
		Amount:      dec("-1"),
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestInsertThenDelete_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	// 桶里已有历史状态，插入+删除后必须精确还原
	seedBucket(t, db, "001.000.001", 2024, 3, dec("5000"), dec("1200"), dec("300"))
	header := seedHeader(t, db, date(2024, 3, 10))

	lineID, err := svc.InsertLine(ctx, &LineInput{
		HeaderID:    header.ID,
		AccountCode: "001.000",
		Side:        model.SideDebit,
		Amount:      dec("800"),
	})
	require.NoError(t, err)

	bucket := getBucket(t, db, "001.000.001", 2024, 3)
	requireDecEqual(t, dec("2000"), bucket.DebitTotal)

	require.NoError(t, svc.DeleteLine(ctx, lineID))

	// 冲销是过账的精确取反
	bucket = getBucket(t, db, "001.000.001", 2024, 3)
	requireDecEqual(t, dec("5000"), bucket.Opening)
	requireDecEqual(t, dec("1200"), bucket.DebitTotal)
	requireDecEqual(t, dec("300"), bucket.CreditTotal)

	got := getHeader(t, db, header.ID)
	requireDecEqual(t, dec("0"), got.TotalDebit)
	requireDecEqual(t, dec("0"), got.TotalCredit)

	// 再删一次应报分录不存在
	err = svc.DeleteLine(ctx, lineID)
	assert.ErrorIs(t, err, repository.ErrLineNotFound)
}

func TestInsertLine_ZeroAmount(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)
	ctx := context.Background()

	seedAccount(t, db, "001.000.001", model.SideDebit, model.ClassAsset)
	header := seedHeader(t, db, date(2024, 7, 1))

	// 零金额是合法输入（只禁负数），过账与冲销都不能报错
	lineID, err := svc.InsertLine(ctx, &LineInput{
		HeaderID:    header.ID,
		AccountCode: "001.000",
		Side:        model.SideDebit,
		Amount:      dec("0"),
		Narration:   "零金额占位分录",
	})
	require.NoError(t, err)

	bucket := getBucket(t, db, "001.000.001", 2024, 7)
	require.NotNil(t, bucket)
	requireDecEqual(t, dec("0"), bucket.DebitTotal)
	requireDecEqual(t, dec("0"), bucket.CreditTotal)

	got := getHeader(t, db, header.ID)
	requireDecEqual(t, dec("0"), got.TotalDebit)

	require.NoError(t, svc.DeleteLine(ctx, lineID))

	var lineCount int64
	require.NoError(t, db.Model(&model.JournalLine{}).Count(&lineCount).Error)
	assert.Equal(t, int64(0), lineCount)
}

func TestUpdateLine_MovesBetweenBuckets(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)
	ctx := context.Background()

	seedAccount(t, db, "100.001.001", model.SideDebit, model.ClassAsset)
	seedAccount(t, db, "200.001.001", model.SideCredit, model.ClassLiability)
	header := seedHeader(t, db, date(2024, 5, 20))

	lineID, err := svc.InsertLine(ctx, &LineInput{
		HeaderID:    header.ID,
		AccountCode: "100.001",
		Side:        model.SideDebit,
		Amount:      dec("100"),
	})
	require.NoError(t, err)

	// 科目、方向、金额全换——旧桶减旧影响，新桶加新影响，两笔独立增量
	err = svc.UpdateLine(ctx, lineID, &LineInput{
		AccountCode: "200.001",
		Side:        model.SideCredit,
		Amount:      dec("80"),
		Narration:   "改挂负债",
	})
	require.NoError(t, err)

	oldBucket := getBucket(t, db, "100.001.001", 2024, 5)
	requireDecEqual(t, dec("0"), oldBucket.DebitTotal)
	requireDecEqual(t, dec("0"), oldBucket.CreditTotal)

	newBucket := getBucket(t, db, "200.001.001", 2024, 5)
	requireDecEqual(t, dec("0"), newBucket.DebitTotal)
	requireDecEqual(t, dec("80"), newBucket.CreditTotal)

	got := getHeader(t, db, header.ID)
	requireDecEqual(t, dec("0"), got.TotalDebit)
	requireDecEqual(t, dec("80"), got.TotalCredit)

	var line model.JournalLine
	require.NoError(t, db.First(&line, lineID).Error)
	assert.Equal(t, "200.001", line.AccountCode)
	assert.Equal(t, model.SideCredit, line.Side)
	assert.Equal(t, "改挂负债", line.Narration)
}

func TestUpdateLine_RejectsHeaderReassign(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)
	ctx := context.Background()

	seedAccount(t, db, "100.001.001", model.SideDebit, model.ClassAsset)
	header := seedHeader(t, db, date(2024, 5, 20))
	other := seedHeader(t, db, date(2024, 6, 1))

	lineID, err := svc.InsertLine(ctx, &LineInput{
		HeaderID:    header.ID,
		AccountCode: "100.001",
		Side:        model.SideDebit,
		Amount:      dec("100"),
	})
	require.NoError(t, err)

	err = svc.UpdateLine(ctx, lineID, &LineInput{
		HeaderID:    other.ID,
		AccountCode: "100.001",
		Side:        model.SideDebit,
		Amount:      dec("100"),
	})
	assert.ErrorIs(t, err, ErrHeaderImmutable)

	// 原桶纹丝不动
	bucket := getBucket(t, db, "100.001.001", 2024, 5)
	requireDecEqual(t, dec("100"), bucket.DebitTotal)
}

func TestUpdateLine_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewPostingService(db)

	err := svc.UpdateLine(context.Background(), 404, &LineInput{
		AccountCode: "100.001",
		Side:        model.SideDebit,
		Amount:      dec("1"),
	})
	assert.ErrorIs(t, err, repository.ErrLineNotFound)
}
