package repository

import (
	"context"
	"errors"
	"strings"

	"ledgersystem/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrHeaderNotFound = errors.New("凭证不存在")
	ErrHeaderExists   = errors.New("凭证号已存在")
	ErrHeaderHasLines = errors.New("凭证下仍有分录，禁止删除")
	ErrLineNotFound   = errors.New("分录不存在")
)

type JournalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// ============================================================
// 凭证头
// ============================================================

func (r *JournalRepository) CreateHeader(ctx context.Context, tx *gorm.DB, header *model.JournalHeader) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "Duplicate") ||
			strings.Contains(err.Error(), "UNIQUE") {
			return ErrHeaderExists
		}
		return err
	}
	return nil
}

func (r *JournalRepository) GetHeaderByID(ctx context.Context, tx *gorm.DB, id int64) (*model.JournalHeader, error) {
	if tx == nil {
		tx = r.db
	}
	var header model.JournalHeader
	err := tx.WithContext(ctx).Where("id = ?", id).First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHeaderNotFound
		}
		return nil, err
	}
	return &header, nil
}

func (r *JournalRepository) GetHeaderByVoucherNo(ctx context.Context, tx *gorm.DB, voucherNo string) (*model.JournalHeader, error) {
	if tx == nil {
		tx = r.db
	}
	var header model.JournalHeader
	err := tx.WithContext(ctx).Where("voucher_no = ?", voucherNo).First(&header).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHeaderNotFound
		}
		return nil, err
	}
	return &header, nil
}

// UpdateHeaderFields 修改凭证头的日期/摘要/类型
// 凭证号是身份标识，聚合字段由分录变更同步维护，均不在此处更新
func (r *JournalRepository) UpdateHeaderFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	delete(updates, "voucher_no")
	delete(updates, "total_debit")
	delete(updates, "total_credit")
	result := tx.WithContext(ctx).
		Model(&model.JournalHeader{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHeaderNotFound
	}
	return nil
}

// AddToHeaderTotals 向凭证头借/贷合计加一笔增量（delta 可为负）
// 与分录变更同事务调用，等价于数据库触发器维护聚合
//
// 零增量直接返回：MySQL 对值未变化的 UPDATE 报 RowsAffected=0，
// 会被下面误判成凭证不存在。调用方都是先查到凭证头才走到这里的。
func (r *JournalRepository) AddToHeaderTotals(ctx context.Context, tx *gorm.DB, headerID int64, side string, delta decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	if delta.IsZero() {
		return nil
	}
	column := "total_debit"
	if side == model.SideCredit {
		column = "total_credit"
	}
	result := tx.WithContext(ctx).
		Model(&model.JournalHeader{}).
		Where("id = ?", headerID).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHeaderNotFound
	}
	return nil
}

// DeleteHeader 删除凭证头
// 名下还有分录时拒绝删除（引用保护，不做级联）
func (r *JournalRepository) DeleteHeader(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	var lineCount int64
	if err := tx.WithContext(ctx).Model(&model.JournalLine{}).Where("header_id = ?", id).Count(&lineCount).Error; err != nil {
		return err
	}
	if lineCount > 0 {
		return ErrHeaderHasLines
	}

	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.JournalHeader{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrHeaderNotFound
	}
	return nil
}

func (r *JournalRepository) ListHeaders(ctx context.Context, year, month int, page, pageSize int) ([]*model.JournalHeader, int64, error) {
	var headers []*model.JournalHeader
	var total int64

	query := r.db.WithContext(ctx).Model(&model.JournalHeader{}).Where("year = ?", year)
	if month > 0 {
		query = query.Where("month = ?", month)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("date ASC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&headers).Error

	return headers, total, err
}

// ============================================================
// 凭证分录
// ============================================================

func (r *JournalRepository) CreateLine(ctx context.Context, tx *gorm.DB, line *model.JournalLine) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(line).Error
}

func (r *JournalRepository) GetLineByID(ctx context.Context, tx *gorm.DB, id int64) (*model.JournalLine, error) {
	if tx == nil {
		tx = r.db
	}
	var line model.JournalLine
	err := tx.WithContext(ctx).Where("id = ?", id).First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLineNotFound
		}
		return nil, err
	}
	return &line, nil
}

// UpdateLineFields 修改分录的科目/方向/金额/摘要
// 分录与凭证头的归属关系创建后不可变，header_id 不在可更新字段之列
func (r *JournalRepository) UpdateLineFields(ctx context.Context, tx *gorm.DB, id int64, updates map[string]interface{}) error {
	if tx == nil {
		tx = r.db
	}
	delete(updates, "header_id")
	result := tx.WithContext(ctx).
		Model(&model.JournalLine{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *JournalRepository) DeleteLine(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).Where("id = ?", id).Delete(&model.JournalLine{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *JournalRepository) ListLinesByHeaderID(ctx context.Context, tx *gorm.DB, headerID int64) ([]*model.JournalLine, error) {
	if tx == nil {
		tx = r.db
	}
	var lines []*model.JournalLine
	err := tx.WithContext(ctx).
		Where("header_id = ?", headerID).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

// ============================================================
// 年度聚合
// ============================================================

// LineAggregate 年度流水聚合行（强类型，替代松散的 map 行）
// 科目维度是分录上的两段码，三段码解析与归并由重算引擎完成
type LineAggregate struct {
	AccountCode string          `gorm:"column:account_code"`
	Month       int             `gorm:"column:month"`
	Side        string          `gorm:"column:side"`
	Total       decimal.Decimal `gorm:"column:total"`
}

// AggregateYear 按（两段科目码, 凭证月份, 借贷方向）汇总目标年度全部分录金额
func (r *JournalRepository) AggregateYear(ctx context.Context, tx *gorm.DB, year int) ([]LineAggregate, error) {
	if tx == nil {
		tx = r.db
	}
	var rows []LineAggregate
	err := tx.WithContext(ctx).
		Table("journal_line").
		Select("journal_line.account_code AS account_code, journal_header.month AS month, journal_line.side AS side, SUM(journal_line.amount) AS total").
		Joins("JOIN journal_header ON journal_header.id = journal_line.header_id").
		Where("journal_header.year = ?", year).
		Group("journal_line.account_code, journal_header.month, journal_line.side").
		Scan(&rows).Error
	return rows, err
}
