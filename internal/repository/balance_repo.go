package repository

import (
	"context"
	"errors"
	"fmt"

	"ledgersystem/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBucketWriteFailed = errors.New("余额桶写入失败")

// BalanceRepository 科目余额桶仓储
//
// 【重要】余额桶是实时过账与批量重算共同的写入目标，发生额累加一律走
// "UPDATE ... SET x = x + ?" 的原子表达式，依赖数据库行锁串行化同桶并发，
// 绝不在应用层先读后写（跨事务的读-改-写会丢更新）。
type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get 读取一个余额桶，查无返回 nil
func (r *BalanceRepository) Get(ctx context.Context, tx *gorm.DB, accountCode string, year, month int) (*model.BalanceBucket, error) {
	if tx == nil {
		tx = r.db
	}
	var bucket model.BalanceBucket
	err := tx.WithContext(ctx).
		Where("account_code = ? AND year = ? AND month = ?", accountCode, year, month).
		First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bucket, nil
}

// EnsureBucket 按需建桶：不存在则以全零值创建，已存在则不动
// 并发建同一个桶时靠唯一键 + ON CONFLICT DO NOTHING 消解冲突
func (r *BalanceRepository) EnsureBucket(ctx context.Context, tx *gorm.DB, accountCode string, year, month int) error {
	if tx == nil {
		tx = r.db
	}
	bucket := &model.BalanceBucket{
		AccountCode: accountCode,
		Year:        year,
		Month:       month,
		Opening:     decimal.Zero,
		DebitTotal:  decimal.Zero,
		CreditTotal: decimal.Zero,
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_code"}, {Name: "year"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(bucket).Error
}

// ApplyMovement 向桶的借方或贷方累计发生额加一笔增量
// delta 可为负（冲销即过账的精确取反），桶不存在时先建桶再累加
//
// 【注意】零增量必须在 UPDATE 之前拦下：MySQL 默认按"值有变化的行"
// 统计 RowsAffected，x = x + 0 命中了行也报 0，下面按 0 行判断
// "桶不存在"的逻辑会被带偏。零金额过账只保证桶存在。
func (r *BalanceRepository) ApplyMovement(ctx context.Context, tx *gorm.DB, accountCode string, year, month int, side string, delta decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	if delta.IsZero() {
		return r.EnsureBucket(ctx, tx, accountCode, year, month)
	}

	column := "debit_total"
	if side == model.SideCredit {
		column = "credit_total"
	}

	apply := func() (int64, error) {
		result := tx.WithContext(ctx).
			Model(&model.BalanceBucket{}).
			Where("account_code = ? AND year = ? AND month = ?", accountCode, year, month).
			UpdateColumn(column, gorm.Expr(column+" + ?", delta))
		return result.RowsAffected, result.Error
	}

	affected, err := apply()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// 桶还不存在，建桶后重试一次
	if err := r.EnsureBucket(ctx, tx, accountCode, year, month); err != nil {
		return err
	}
	affected, err = apply()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: account=%s year=%d month=%d", ErrBucketWriteFailed, accountCode, year, month)
	}
	return nil
}

// SetMovement 将桶的借方或贷方累计发生额整体覆写为指定值（重算引擎专用）
func (r *BalanceRepository) SetMovement(ctx context.Context, tx *gorm.DB, accountCode string, year, month int, side string, total decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	if err := r.EnsureBucket(ctx, tx, accountCode, year, month); err != nil {
		return err
	}

	column := "debit_total"
	if side == model.SideCredit {
		column = "credit_total"
	}
	return tx.WithContext(ctx).
		Model(&model.BalanceBucket{}).
		Where("account_code = ? AND year = ? AND month = ?", accountCode, year, month).
		UpdateColumn(column, total).Error
}

// SetOpening 覆写桶的期初余额（结转/重算滚动专用）
func (r *BalanceRepository) SetOpening(ctx context.Context, tx *gorm.DB, accountCode string, year, month int, opening decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	if err := r.EnsureBucket(ctx, tx, accountCode, year, month); err != nil {
		return err
	}
	return tx.WithContext(ctx).
		Model(&model.BalanceBucket{}).
		Where("account_code = ? AND year = ? AND month = ?", accountCode, year, month).
		UpdateColumn("opening", opening).Error
}

// ZeroMovements 清零目标年度所有桶的借贷发生额
// 期初余额（含 0 月快照）来自上年结转或历史迁移，不由本年流水推导，不动
func (r *BalanceRepository) ZeroMovements(ctx context.Context, tx *gorm.DB, year int) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.BalanceBucket{}).
		Where("year = ?", year).
		UpdateColumns(map[string]interface{}{
			"debit_total":  decimal.Zero,
			"credit_total": decimal.Zero,
		}).Error
}

// ListByPeriod 列出某（年度, 月份）的全部余额桶
func (r *BalanceRepository) ListByPeriod(ctx context.Context, tx *gorm.DB, year, month int) ([]*model.BalanceBucket, error) {
	if tx == nil {
		tx = r.db
	}
	var buckets []*model.BalanceBucket
	err := tx.WithContext(ctx).
		Where("year = ? AND month = ?", year, month).
		Order("account_code ASC").
		Find(&buckets).Error
	return buckets, err
}

// ListYearAccountCodes 列出目标年度出现过余额桶的全部科目编码（去重）
func (r *BalanceRepository) ListYearAccountCodes(ctx context.Context, tx *gorm.DB, year int) ([]string, error) {
	if tx == nil {
		tx = r.db
	}
	var codes []string
	err := tx.WithContext(ctx).
		Model(&model.BalanceBucket{}).
		Where("year = ?", year).
		Distinct("account_code").
		Order("account_code ASC").
		Pluck("account_code", &codes).Error
	return codes, err
}
