package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceBucket 科目余额表
// 按（科目编码, 年度, 月份）一桶，月份取值 0-12：
//   - 0 为年初快照（上年结转或初始迁移写入）
//   - 1-12 为自然月
//
// Opening 为期初余额（Saldo），DebitTotal/CreditTotal 为该桶累计借/贷发生额。
// 桶采用按需创建：任何过账首次触达某桶时以全零值建桶。
//
// 【重要】实时过账引擎（增量写）与重算/结转引擎（批量写）共用此表，
// 两边必须走同一套"读-改-写"纪律，依赖数据库行锁串行化同桶并发。
type BalanceBucket struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountCode string          `gorm:"type:varchar(11);uniqueIndex:uk_bucket,priority:1;not null" json:"account_code"` // 三段式科目编码
	Year        int             `gorm:"uniqueIndex:uk_bucket,priority:2;not null" json:"year"`                          // 会计年度
	Month       int             `gorm:"uniqueIndex:uk_bucket,priority:3;not null" json:"month"`                         // 月份 0-12
	Opening     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"opening"`                           // 期初余额
	DebitTotal  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"debit_total"`                       // 借方累计发生额
	CreditTotal decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"credit_total"`                      // 贷方累计发生额
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BalanceBucket) TableName() string {
	return "balance_bucket"
}

// Ending 按科目余额方向计算期末余额
// 借方科目：期初 + 借方发生 - 贷方发生
// 贷方科目：期初 + 贷方发生 - 借方发生
func (b *BalanceBucket) Ending(side string) decimal.Decimal {
	if side == SideDebit {
		return b.Opening.Add(b.DebitTotal).Sub(b.CreditTotal)
	}
	return b.Opening.Add(b.CreditTotal).Sub(b.DebitTotal)
}
