package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"
	"ledgersystem/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrUnbalanced   = errors.New("借贷不平衡，凭证不允许保存")
	ErrInvalidKind  = errors.New("凭证类型不合法，应为 J 或 M")
	ErrVoucherEmpty = errors.New("凭证至少要有一条分录")
)

// JournalService 凭证服务：整凭证保存/删除、凭证头编辑、凭证查询
// 整凭证操作自己开事务，分录逐条过账走 PostingService 的底层原语
type JournalService struct {
	db          *gorm.DB
	journalRepo *repository.JournalRepository
	posting     *PostingService
}

func NewJournalService(db *gorm.DB) *JournalService {
	return &JournalService{
		db:          db,
		journalRepo: repository.NewJournalRepository(db),
		posting:     NewPostingService(db),
	}
}

// VoucherLineInput 整凭证保存时的分录参数
type VoucherLineInput struct {
	AccountCode string          `json:"account_code" binding:"required"`
	Side        string          `json:"side" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Narration   string          `json:"narration"`
}

// CreateVoucherRequest 整凭证保存参数
type CreateVoucherRequest struct {
	VoucherNo string             `json:"voucher_no"` // 可空，空则由系统生成
	Date      time.Time          `json:"date" binding:"required"`
	Memo      string             `json:"memo"`
	Kind      string             `json:"kind"`
	Lines     []VoucherLineInput `json:"lines" binding:"required"`
}

// Voucher 凭证头 + 分录的查询视图
type Voucher struct {
	Header *model.JournalHeader `json:"header"`
	Lines  []*model.JournalLine `json:"lines"`
}

// CreateVoucher 整凭证保存
//
// 借贷不平衡的凭证在此被拒绝——表单层应当先拦，核心层必须再拦，
// 否则余额桶会留下不平的半截状态。
// 凭证头、全部分录、全部过账在一个事务内完成。
func (s *JournalService) CreateVoucher(ctx context.Context, req *CreateVoucherRequest) (*model.JournalHeader, error) {
	if len(req.Lines) == 0 {
		return nil, ErrVoucherEmpty
	}
	kind := req.Kind
	if kind == "" {
		kind = model.KindOrdinary
	}
	if !model.IsValidKind(kind) {
		return nil, ErrInvalidKind
	}

	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i := range req.Lines {
		in := req.Lines[i]
		if !model.IsValidSide(in.Side) {
			return nil, ErrInvalidSide
		}
		if in.Amount.IsNegative() {
			return nil, ErrInvalidAmount
		}
		if !aliasCodePattern.MatchString(in.AccountCode) {
			return nil, ErrInvalidAliasCode
		}
		if in.Side == model.SideDebit {
			totalDebit = totalDebit.Add(in.Amount)
		} else {
			totalCredit = totalCredit.Add(in.Amount)
		}
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, fmt.Errorf("%w: 借方 %s, 贷方 %s", ErrUnbalanced, totalDebit, totalCredit)
	}

	voucherNo := req.VoucherNo
	if voucherNo == "" {
		voucherNo = idgen.GenerateVoucherNo()
	}

	header := &model.JournalHeader{
		VoucherNo:   voucherNo,
		Memo:        req.Memo,
		Kind:        kind,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
	}
	header.SetDate(req.Date)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.journalRepo.CreateHeader(ctx, tx, header); err != nil {
			return err
		}
		for i := range req.Lines {
			in := req.Lines[i]
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
			if err := s.posting.PostLine(ctx, tx, header.Date, in.AccountCode, in.Side, in.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return header, nil
}

// DeleteVoucher 整凭证删除：逐条冲销并删除分录，最后删除凭证头
func (s *JournalService) DeleteVoucher(ctx context.Context, headerID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		header, err := s.journalRepo.GetHeaderByID(ctx, tx, headerID)
		if err != nil {
			return err
		}
		lines, err := s.journalRepo.ListLinesByHeaderID(ctx, tx, headerID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if err := s.posting.UnpostLine(ctx, tx, header.Date, line.AccountCode, line.Side, line.Amount); err != nil {
				return err
			}
			if err := s.journalRepo.AddToHeaderTotals(ctx, tx, header.ID, line.Side, line.Amount.Neg()); err != nil {
				return err
			}
			if err := s.journalRepo.DeleteLine(ctx, tx, line.ID); err != nil {
				return err
			}
		}
		return s.journalRepo.DeleteHeader(ctx, tx, headerID)
	})
}

// UpdateHeaderRequest 凭证头编辑参数（nil 字段不改）
type UpdateHeaderRequest struct {
	Date *time.Time `json:"date"`
	Memo *string    `json:"memo"`
	Kind *string    `json:"kind"`
}

// UpdateHeader 编辑凭证头
//
// 【关键点】日期跨期间时，名下全部分录要先从旧期间冲销、再过账进新期间，
// 与凭证头更新同一个事务，否则余额桶会与流水脱节。
func (s *JournalService) UpdateHeader(ctx context.Context, headerID int64, req *UpdateHeaderRequest) error {
	if req.Kind != nil && !model.IsValidKind(*req.Kind) {
		return ErrInvalidKind
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		header, err := s.journalRepo.GetHeaderByID(ctx, tx, headerID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if req.Memo != nil {
			updates["memo"] = *req.Memo
		}
		if req.Kind != nil {
			updates["kind"] = *req.Kind
		}

		if req.Date != nil {
			newDate := *req.Date
			periodChanged := newDate.Year() != header.Year || int(newDate.Month()) != header.Month
			if periodChanged {
				lines, err := s.journalRepo.ListLinesByHeaderID(ctx, tx, headerID)
				if err != nil {
					return err
				}
				for _, line := range lines {
					if err := s.posting.UnpostLine(ctx, tx, header.Date, line.AccountCode, line.Side, line.Amount); err != nil {
						return err
					}
					if err := s.posting.PostLine(ctx, tx, newDate, line.AccountCode, line.Side, line.Amount); err != nil {
						return err
					}
				}
			}
			updates["date"] = newDate
			updates["year"] = newDate.Year()
			updates["month"] = int(newDate.Month())
		}

		if len(updates) == 0 {
			return nil
		}
		return s.journalRepo.UpdateHeaderFields(ctx, tx, headerID, updates)
	})
}

// DeleteHeader 删除空凭证头（名下有分录会被引用保护拒绝）
func (s *JournalService) DeleteHeader(ctx context.Context, headerID int64) error {
	return s.journalRepo.DeleteHeader(ctx, nil, headerID)
}

// GetVoucher 按凭证号查询凭证头与全部分录
func (s *JournalService) GetVoucher(ctx context.Context, voucherNo string) (*Voucher, error) {
	header, err := s.journalRepo.GetHeaderByVoucherNo(ctx, nil, voucherNo)
	if err != nil {
		return nil, err
	}
	lines, err := s.journalRepo.ListLinesByHeaderID(ctx, nil, header.ID)
	if err != nil {
		return nil, err
	}
	return &Voucher{Header: header, Lines: lines}, nil
}

// ListVouchers 按期间分页查询凭证头
func (s *JournalService) ListVouchers(ctx context.Context, year, month, page, pageSize int) ([]*model.JournalHeader, int64, error) {
	return s.journalRepo.ListHeaders(ctx, year, month, page, pageSize)
}
