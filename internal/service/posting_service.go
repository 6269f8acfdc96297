package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnknownAccount  = errors.New("科目不在科目表中")
	ErrInvalidAmount   = errors.New("分录金额不能为负数")
	ErrHeaderImmutable = errors.New("分录不允许改挂到其他凭证")
)

// PostingService 实时过账引擎
//
// 职责：让余额桶始终是凭证分录的精确增量镜像——分录插入/修改/删除的
// 瞬间同步修正余额桶与凭证头聚合，而不是事后重算。
//
// 【关键点】每个公开操作都在一个数据库事务内完成：
//  1. 原子性：分录、凭证头聚合、余额桶必须同时成功或同时失败
//  2. 冲销即过账的精确取反，这是改/删不用全量重算的根基
//  3. 任何失败整个事务回滚，外部永远看不到半截桶
type PostingService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	aliasRepo   *repository.AliasRepository
	balanceRepo *repository.BalanceRepository
	journalRepo *repository.JournalRepository
}

func NewPostingService(db *gorm.DB) *PostingService {
	return &PostingService{
		db:          db,
		accountRepo: repository.NewAccountRepository(db),
		aliasRepo:   repository.NewAliasRepository(db),
		balanceRepo: repository.NewBalanceRepository(db),
		journalRepo: repository.NewJournalRepository(db),
	}
}

// LineInput 分录写入参数
type LineInput struct {
	HeaderID    int64           `json:"header_id"`
	AccountCode string          `json:"account_code"` // 两段式交易科目码
	Side        string          `json:"side"`
	Amount      decimal.Decimal `json:"amount"`
	Narration   string          `json:"narration"`
}

func (in *LineInput) validate() error {
	if !model.IsValidSide(in.Side) {
		return ErrInvalidSide
	}
	if in.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !aliasCodePattern.MatchString(in.AccountCode) {
		return ErrInvalidAliasCode
	}
	return nil
}

// resolveAccount 事务内解析两段码，规则与 AccountService.ResolveAccount 一致
func (s *PostingService) resolveAccount(ctx context.Context, tx *gorm.DB, code2 string) (string, error) {
	alias, err := s.aliasRepo.GetByCode(ctx, tx, code2)
	if err != nil {
		return "", err
	}
	if alias != nil {
		return alias.AccountCode, nil
	}
	return code2 + model.DefaultAliasSuffix, nil
}

// requireAccount 解析两段码并确认科目在科目表中
func (s *PostingService) requireAccount(ctx context.Context, tx *gorm.DB, code2 string) (string, error) {
	resolved, err := s.resolveAccount(ctx, tx, code2)
	if err != nil {
		return "", err
	}
	if _, err := s.accountRepo.GetByCode(ctx, tx, resolved); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownAccount, resolved)
		}
		return "", err
	}
	return resolved, nil
}

// InsertLine 插入一条分录并实时过账
// 凭证不存在/科目不在科目表中均为致命错误，整个事务回滚
func (s *PostingService) InsertLine(ctx context.Context, in *LineInput) (int64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}

	var lineID int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		header, err := s.journalRepo.GetHeaderByID(ctx, tx, in.HeaderID)
		if err != nil {
			return err
		}

		resolved, err := s.requireAccount(ctx, tx, in.AccountCode)
		if err != nil {
			return err
		}

		line := &model.JournalLine{
			HeaderID:    header.ID,
			AccountCode: in.AccountCode,
			Side:        in.Side,
			Amount:      in.Amount,
			Narration:   in.Narration,
		}
		if err := s.journalRepo.CreateLine(ctx, tx, line); err != nil {
			return fmt.Errorf("保存分录失败: %w", err)
		}

		if err := s.balanceRepo.ApplyMovement(ctx, tx, resolved, header.Year, header.Month, in.Side, in.Amount); err != nil {
			return fmt.Errorf("过账失败: %w", err)
		}
		if err := s.journalRepo.AddToHeaderTotals(ctx, tx, header.ID, in.Side, in.Amount); err != nil {
			return fmt.Errorf("更新凭证头聚合失败: %w", err)
		}

		lineID = line.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return lineID, nil
}

// UpdateLine 修改分录并实时修正过账
//
// 【关键点】旧影响与新影响必须作为两笔独立增量分别计算：
// 旧桶由分录当前的科目与凭证期间决定，新桶由新值决定，科目变了桶就变，
// 凭证日期被单独修改过桶也会变，不能合并成一个差额去碰同一个桶。
func (s *PostingService) UpdateLine(ctx context.Context, id int64, in *LineInput) error {
	if err := in.validate(); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		line, err := s.journalRepo.GetLineByID(ctx, tx, id)
		if err != nil {
			return err
		}
		// 归属关系创建后不可变
		if in.HeaderID != 0 && in.HeaderID != line.HeaderID {
			return ErrHeaderImmutable
		}

		header, err := s.journalRepo.GetHeaderByID(ctx, tx, line.HeaderID)
		if err != nil {
			return err
		}

		// 第一笔增量：把旧分录的影响从旧桶里减掉
		oldResolved, err := s.resolveAccount(ctx, tx, line.AccountCode)
		if err != nil {
			return err
		}
		if err := s.balanceRepo.ApplyMovement(ctx, tx, oldResolved, header.Year, header.Month, line.Side, line.Amount.Neg()); err != nil {
			return fmt.Errorf("冲销旧分录失败: %w", err)
		}
		if err := s.journalRepo.AddToHeaderTotals(ctx, tx, header.ID, line.Side, line.Amount.Neg()); err != nil {
			return err
		}

		// 第二笔增量：把新分录的影响加进新桶
		newResolved, err := s.requireAccount(ctx, tx, in.AccountCode)
		if err != nil {
			return err
		}
		if err := s.balanceRepo.ApplyMovement(ctx, tx, newResolved, header.Year, header.Month, in.Side, in.Amount); err != nil {
			return fmt.Errorf("过账新分录失败: %w", err)
		}
		if err := s.journalRepo.AddToHeaderTotals(ctx, tx, header.ID, in.Side, in.Amount); err != nil {
			return err
		}

		return s.journalRepo.UpdateLineFields(ctx, tx, id, map[string]interface{}{
			"account_code": in.AccountCode,
			"side":         in.Side,
			"amount":       in.Amount,
			"narration":    in.Narration,
		})
	})
}

// DeleteLine 删除分录并冲销其过账影响
func (s *PostingService) DeleteLine(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		line, err := s.journalRepo.GetLineByID(ctx, tx, id)
		if err != nil {
			return err
		}
		header, err := s.journalRepo.GetHeaderByID(ctx, tx, line.HeaderID)
		if err != nil {
			return err
		}
		resolved, err := s.resolveAccount(ctx, tx, line.AccountCode)
		if err != nil {
			return err
		}

		if err := s.balanceRepo.ApplyMovement(ctx, tx, resolved, header.Year, header.Month, line.Side, line.Amount.Neg()); err != nil {
			return fmt.Errorf("冲销分录失败: %w", err)
		}
		if err := s.journalRepo.AddToHeaderTotals(ctx, tx, header.ID, line.Side, line.Amount.Neg()); err != nil {
			return err
		}
		return s.journalRepo.DeleteLine(ctx, tx, id)
	})
}

// ============================================================
// 底层过账原语
// ============================================================
// 凭证头和分录由调用方自己的事务管理时（如整凭证批量保存）使用，
// 只针对一个桶施加或冲销一笔发生额，桶不存在则按需创建。

// PostLine 向（科目, 凭证日期所在期间）的桶施加一笔发生额
func (s *PostingService) PostLine(ctx context.Context, tx *gorm.DB, date time.Time, code2, side string, amount decimal.Decimal) error {
	resolved, err := s.requireAccount(ctx, tx, code2)
	if err != nil {
		return err
	}
	return s.balanceRepo.ApplyMovement(ctx, tx, resolved, date.Year(), int(date.Month()), side, amount)
}

// UnpostLine 冲销，PostLine 的精确取反
func (s *PostingService) UnpostLine(ctx context.Context, tx *gorm.DB, date time.Time, code2, side string, amount decimal.Decimal) error {
	resolved, err := s.requireAccount(ctx, tx, code2)
	if err != nil {
		return err
	}
	return s.balanceRepo.ApplyMovement(ctx, tx, resolved, date.Year(), int(date.Month()), side, amount.Neg())
}

// GetBucket 查询一个余额桶，查无返回 nil
func (s *PostingService) GetBucket(ctx context.Context, accountCode string, year, month int) (*model.BalanceBucket, error) {
	return s.balanceRepo.Get(ctx, nil, accountCode, year, month)
}
