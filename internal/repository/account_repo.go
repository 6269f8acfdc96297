package repository

import (
	"context"
	"errors"
	"strings"

	"ledgersystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound   = errors.New("科目不存在")
	ErrAccountExists     = errors.New("科目编码已存在")
	ErrAccountReferenced = errors.New("科目已被余额或分录引用，禁止删除")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil {
		// MySQL 与 SQLite 的唯一键冲突报错文案不同，统一翻译
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "Duplicate") ||
			strings.Contains(err.Error(), "UNIQUE") {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (r *AccountRepository) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("code = ?", code).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Update 修改科目名称/方向/类别
// 科目编码是身份标识，不在可更新字段之列
func (r *AccountRepository) Update(ctx context.Context, code string, updates map[string]interface{}) error {
	delete(updates, "code")
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("code = ?", code).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Delete 删除科目
// 被余额桶或科目映射引用的科目不允许物理删除
func (r *AccountRepository) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bucketCount int64
		if err := tx.Model(&model.BalanceBucket{}).Where("account_code = ?", code).Count(&bucketCount).Error; err != nil {
			return err
		}
		if bucketCount > 0 {
			return ErrAccountReferenced
		}

		var aliasCount int64
		if err := tx.Model(&model.AccountAlias{}).Where("account_code = ?", code).Count(&aliasCount).Error; err != nil {
			return err
		}
		if aliasCount > 0 {
			return ErrAccountReferenced
		}

		// 走兜底后缀解析的分录没有显式映射行，单独用两段码前缀探测
		if strings.HasSuffix(code, model.DefaultAliasSuffix) {
			code2 := strings.TrimSuffix(code, model.DefaultAliasSuffix)
			var lineCount int64
			if err := tx.Model(&model.JournalLine{}).Where("account_code = ?", code2).Count(&lineCount).Error; err != nil {
				return err
			}
			if lineCount > 0 {
				return ErrAccountReferenced
			}
		}

		result := tx.Where("code = ?", code).Delete(&model.Account{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}

func (r *AccountRepository) List(ctx context.Context) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).Order("code ASC").Find(&accounts).Error
	return accounts, err
}
