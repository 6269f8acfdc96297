package repository

import (
	"context"

	"ledgersystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AliasRepository struct {
	db *gorm.DB
}

func NewAliasRepository(db *gorm.DB) *AliasRepository {
	return &AliasRepository{db: db}
}

// Upsert 写入或覆盖一条科目映射
func (r *AliasRepository) Upsert(ctx context.Context, alias *model.AccountAlias) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"account_code", "updated_at"}),
		}).
		Create(alias).Error
}

// GetByCode 按两段码查映射，查无返回 nil（不是错误，由解析器兜底）
func (r *AliasRepository) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*model.AccountAlias, error) {
	if tx == nil {
		tx = r.db
	}
	var alias model.AccountAlias
	err := tx.WithContext(ctx).Where("code = ?", code).First(&alias).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &alias, nil
}

func (r *AliasRepository) List(ctx context.Context) ([]*model.AccountAlias, error) {
	var aliases []*model.AccountAlias
	err := r.db.WithContext(ctx).Order("code ASC").Find(&aliases).Error
	return aliases, err
}

func (r *AliasRepository) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Where("code = ?", code).Delete(&model.AccountAlias{}).Error
}
