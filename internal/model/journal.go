package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 凭证类型常量
// ============================================================================

const (
	KindOrdinary  = "J" // 普通凭证
	KindAdjusting = "M" // 调整凭证
)

// IsValidKind 校验凭证类型取值
func IsValidKind(kind string) bool {
	return kind == KindOrdinary || kind == KindAdjusting
}

// JournalHeader 凭证头表
// 一张凭证一条记录，凭证号由调用方指定（或由系统生成），全局唯一。
//
// 【重要】TotalDebit/TotalCredit 是聚合字段，必须始终等于名下分录的
// 借/贷合计。本系统不依赖数据库触发器，而是把分录变更与聚合更新
// 放进同一个事务里同步维护（等价于触发器方案）。
type JournalHeader struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	VoucherNo   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"voucher_no"`    // 凭证号
	Date        time.Time       `gorm:"not null" json:"date"`                                       // 凭证日期
	Year        int             `gorm:"index:idx_header_period,priority:1;not null" json:"year"`    // 会计年度（由日期冗余，便于聚合）
	Month       int             `gorm:"index:idx_header_period,priority:2;not null" json:"month"`   // 会计月份 1-12
	Memo        string          `gorm:"type:varchar(256)" json:"memo"`                              // 摘要
	Kind        string          `gorm:"type:varchar(4);not null;default:J" json:"kind"`             // 凭证类型：J 普通 / M 调整
	TotalDebit  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_debit"`   // 借方合计（聚合维护）
	TotalCredit decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_credit"`  // 贷方合计（聚合维护）
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JournalHeader) TableName() string {
	return "journal_header"
}

// SetDate 设置凭证日期并同步冗余的年月字段
func (h *JournalHeader) SetDate(date time.Time) {
	h.Date = date
	h.Year = date.Year()
	h.Month = int(date.Month())
}

// JournalLine 凭证分录表
// 一条借方或贷方分录一条记录，归属唯一凭证头。
// 分录创建后不允许改挂到其他凭证头，其余字段（科目/方向/金额/摘要）可改，
// 修改时必须同步回写凭证头聚合与相应余额桶。
type JournalLine struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	HeaderID    int64           `gorm:"index;not null" json:"header_id"`                    // 所属凭证头ID
	AccountCode string          `gorm:"type:varchar(7);not null" json:"account_code"`       // 两段式交易科目码，如 020.001
	Side        string          `gorm:"type:varchar(10);not null" json:"side"`              // 借贷方向
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`          // 金额（非负）
	Narration   string          `gorm:"type:varchar(256)" json:"narration"`                 // 分录摘要
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JournalLine) TableName() string {
	return "journal_line"
}
