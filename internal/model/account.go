package model

import (
	"time"
)

// ============================================================================
// 借贷方向常量
// ============================================================================

const (
	SideDebit  = "DEBIT"  // 借方
	SideCredit = "CREDIT" // 贷方
)

// IsValidSide 校验借贷方向取值
func IsValidSide(side string) bool {
	return side == SideDebit || side == SideCredit
}

// ============================================================================
// 科目类别常量
// ============================================================================

const (
	ClassAsset     = "ASSET"     // 资产类
	ClassLiability = "LIABILITY" // 负债类
	ClassEquity    = "EQUITY"    // 权益类
	ClassRevenue   = "REVENUE"   // 收入类
	ClassExpense   = "EXPENSE"   // 费用类
)

var validClasses = map[string]bool{
	ClassAsset:     true,
	ClassLiability: true,
	ClassEquity:    true,
	ClassRevenue:   true,
	ClassExpense:   true,
}

// IsValidClass 校验科目类别取值
func IsValidClass(class string) bool {
	return validClasses[class]
}

// Account 会计科目表（科目字典）
// 科目编码为三段式，每段3位数字，点号分隔，如 020.001.001
// 编码一经创建不可修改；名称/方向/类别允许修改
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"type:varchar(11);uniqueIndex;not null" json:"code"` // 科目编码（三段式）
	Name      string    `gorm:"type:varchar(128);not null" json:"name"`            // 科目名称
	Side      string    `gorm:"type:varchar(10);not null" json:"side"`             // 余额方向：DEBIT/CREDIT
	Class     string    `gorm:"type:varchar(16);not null" json:"class"`            // 科目类别
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// IsFlowAccount 是否为损益类科目（收入/费用）
// 损益类科目按期间计量，月结/年结时余额清零，不向后结转
func (a *Account) IsFlowAccount() bool {
	return a.Class == ClassRevenue || a.Class == ClassExpense
}
