package model

import (
	"time"
)

// DefaultAliasSuffix 缺省映射后缀
// 两段式交易科目码未配置显式映射时，追加此后缀合成三段式科目编码。
// 调用方依赖这一兜底规则：任何两段码都能解析出一个语法合法的科目编码。
const DefaultAliasSuffix = ".001"

// AccountAlias 科目映射表
// 两段式交易科目码 -> 三段式正式科目编码
// 映射由外部维护；查无映射不是错误，走 DefaultAliasSuffix 兜底。
type AccountAlias struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string    `gorm:"type:varchar(7);uniqueIndex;not null" json:"code"`  // 两段式交易科目码
	AccountCode string    `gorm:"type:varchar(11);not null" json:"account_code"`     // 三段式科目编码
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccountAlias) TableName() string {
	return "account_alias"
}
