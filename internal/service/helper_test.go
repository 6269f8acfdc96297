package service

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"ledgersystem/internal/config"
	"ledgersystem/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 建一个临时 SQLite 库并迁移全部表结构
// 生产环境跑 MySQL，测试用 SQLite 走完全相同的 gorm 代码路径
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.AccountAlias{},
		&model.BalanceBucket{},
		&model.JournalHeader{},
		&model.JournalLine{},
		&model.OutboxMessage{},
	))
	return db
}

func testCfg() *config.Config {
	return &config.Config{}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// seedAccount 造一条科目
func seedAccount(t *testing.T, db *gorm.DB, code, side, class string) *model.Account {
	t.Helper()
	account := &model.Account{Code: code, Name: "科目" + code, Side: side, Class: class}
	require.NoError(t, db.Create(account).Error)
	return account
}

var headerSeq int

// seedHeader 造一个空凭证头
func seedHeader(t *testing.T, db *gorm.DB, d time.Time) *model.JournalHeader {
	t.Helper()
	headerSeq++
	header := &model.JournalHeader{
		VoucherNo:   fmt.Sprintf("TEST-%d-%d", d.Year(), headerSeq),
		Kind:        model.KindOrdinary,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	header.SetDate(d)
	require.NoError(t, db.Create(header).Error)
	return header
}

// seedBucket 直接造一个余额桶
func seedBucket(t *testing.T, db *gorm.DB, code string, year, month int, opening, debit, credit decimal.Decimal) *model.BalanceBucket {
	t.Helper()
	bucket := &model.BalanceBucket{
		AccountCode: code,
		Year:        year,
		Month:       month,
		Opening:     opening,
		DebitTotal:  debit,
		CreditTotal: credit,
	}
	require.NoError(t, db.Create(bucket).Error)
	return bucket
}

// getBucket 读桶，查无返回 nil
func getBucket(t *testing.T, db *gorm.DB, code string, year, month int) *model.BalanceBucket {
	t.Helper()
	var bucket model.BalanceBucket
	err := db.Where("account_code = ? AND year = ? AND month = ?", code, year, month).First(&bucket).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	require.NoError(t, err)
	return &bucket
}

// getHeader 重新读凭证头
func getHeader(t *testing.T, db *gorm.DB, id int64) *model.JournalHeader {
	t.Helper()
	var header model.JournalHeader
	require.NoError(t, db.First(&header, id).Error)
	return &header
}

// requireDecEqual 十进制金额断言（不同标度的等值也算相等）
func requireDecEqual(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.True(t, want.Equal(got), "期望 %s 实际 %s", want, got)
}
