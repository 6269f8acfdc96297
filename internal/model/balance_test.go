package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalanceBucketEnding(t *testing.T) {
	bucket := BalanceBucket{
		Opening:     decimal.RequireFromString("5000"),
		DebitTotal:  decimal.RequireFromString("1200"),
		CreditTotal: decimal.RequireFromString("300"),
	}

	// 借方余额科目：期初 + 借方 - 贷方
	assert.True(t, bucket.Ending(SideDebit).Equal(decimal.RequireFromString("5900")))
	// 贷方余额科目：期初 + 贷方 - 借方
	assert.True(t, bucket.Ending(SideCredit).Equal(decimal.RequireFromString("4100")))
}

func TestIsFlowAccount(t *testing.T) {
	assert.True(t, (&Account{Class: ClassRevenue}).IsFlowAccount())
	assert.True(t, (&Account{Class: ClassExpense}).IsFlowAccount())
	assert.False(t, (&Account{Class: ClassAsset}).IsFlowAccount())
	assert.False(t, (&Account{Class: ClassLiability}).IsFlowAccount())
	assert.False(t, (&Account{Class: ClassEquity}).IsFlowAccount())
}
