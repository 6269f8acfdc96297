package service

import (
	"context"
	"errors"
	"regexp"

	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"

	"gorm.io/gorm"
)

var (
	ErrInvalidAccountCode = errors.New("科目编码格式不合法，应为三段式，如 020.001.001")
	ErrInvalidAliasCode   = errors.New("交易科目码格式不合法，应为两段式，如 020.001")
	ErrInvalidSide        = errors.New("余额方向不合法，应为 DEBIT 或 CREDIT")
	ErrInvalidClass       = errors.New("科目类别不合法")
)

var (
	accountCodePattern = regexp.MustCompile(`^\d{3}\.\d{3}\.\d{3}$`)
	aliasCodePattern   = regexp.MustCompile(`^\d{3}\.\d{3}$`)
)

// AccountService 科目字典服务：科目增删改查 + 两段码解析
type AccountService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	aliasRepo   *repository.AliasRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		aliasRepo:   repository.NewAliasRepository(db),
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, account *model.Account) error {
	if !accountCodePattern.MatchString(account.Code) {
		return ErrInvalidAccountCode
	}
	if !model.IsValidSide(account.Side) {
		return ErrInvalidSide
	}
	if !model.IsValidClass(account.Class) {
		return ErrInvalidClass
	}
	return s.accountRepo.Create(ctx, account)
}

// UpdateAccount 修改科目名称/方向/类别，编码不可变
func (s *AccountService) UpdateAccount(ctx context.Context, code string, name, side, class string) error {
	updates := map[string]interface{}{}
	if name != "" {
		updates["name"] = name
	}
	if side != "" {
		if !model.IsValidSide(side) {
			return ErrInvalidSide
		}
		updates["side"] = side
	}
	if class != "" {
		if !model.IsValidClass(class) {
			return ErrInvalidClass
		}
		updates["class"] = class
	}
	if len(updates) == 0 {
		return nil
	}
	return s.accountRepo.Update(ctx, code, updates)
}

func (s *AccountService) DeleteAccount(ctx context.Context, code string) error {
	return s.accountRepo.Delete(ctx, code)
}

func (s *AccountService) GetAccount(ctx context.Context, code string) (*model.Account, error) {
	return s.accountRepo.GetByCode(ctx, nil, code)
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]*model.Account, error) {
	return s.accountRepo.List(ctx)
}

// ============================================================
// 两段码解析
// ============================================================

// SetAlias 配置两段码到三段式科目编码的显式映射
func (s *AccountService) SetAlias(ctx context.Context, code2, accountCode string) error {
	if !aliasCodePattern.MatchString(code2) {
		return ErrInvalidAliasCode
	}
	if !accountCodePattern.MatchString(accountCode) {
		return ErrInvalidAccountCode
	}
	return s.aliasRepo.Upsert(ctx, &model.AccountAlias{
		Code:        code2,
		AccountCode: accountCode,
	})
}

func (s *AccountService) ListAliases(ctx context.Context) ([]*model.AccountAlias, error) {
	return s.aliasRepo.List(ctx)
}

func (s *AccountService) DeleteAlias(ctx context.Context, code2 string) error {
	return s.aliasRepo.Delete(ctx, code2)
}

// ResolveAccount 解析两段式交易科目码为三段式科目编码
// 有显式映射用映射，没有就追加缺省后缀 ".001"——解析永不失手，
// 任何两段码都能得到一个语法合法的科目编码（数据库故障除外）
func (s *AccountService) ResolveAccount(ctx context.Context, code2 string) (string, error) {
	if !aliasCodePattern.MatchString(code2) {
		return "", ErrInvalidAliasCode
	}
	alias, err := s.aliasRepo.GetByCode(ctx, nil, code2)
	if err != nil {
		return "", err
	}
	if alias != nil {
		return alias.AccountCode, nil
	}
	return code2 + model.DefaultAliasSuffix, nil
}
