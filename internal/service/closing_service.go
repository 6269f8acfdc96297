package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ledgersystem/internal/config"
	"ledgersystem/internal/infrastructure/lock"
	"ledgersystem/internal/model"
	"ledgersystem/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidPeriod = errors.New("月份不合法，月结只接受 1-11 月，12 月请走年结")

// ClosingService 结转引擎：月结 + 年结
//
// 月结：把某月期末余额推进到下月期初，损益类清零、其余结转。
// 年结：把 12 月期末推进到下年 0 月快照和 1 月期初，损益类与
// "本年利润"科目清零，"未分配利润"科目额外吸收本年利润。
//
// 月结按科目类别分流，年结在类别规则之外再特判两个配置科目——
// 两套规则并存，不能互相推导，也不能合并。
type ClosingService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	accountRepo *repository.AccountRepository
	balanceRepo *repository.BalanceRepository
	outboxRepo  *repository.OutboxRepository
}

func NewClosingService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *ClosingService {
	return &ClosingService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		accountRepo: repository.NewAccountRepository(db),
		balanceRepo: repository.NewBalanceRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// lockPeriod 批量操作前按年度加互斥锁，未配置 Redis 时退化为仅数据库事务
func (s *ClosingService) lockPeriod(ctx context.Context, year int, operation string) (func(), error) {
	if s.redisClient == nil {
		return func() {}, nil
	}
	periodLock := lock.NewPeriodLock(s.redisClient, year, operation)
	if err := periodLock.Lock(ctx, 200*time.Millisecond, 50); err != nil {
		return nil, fmt.Errorf("年度 %d 已有批量操作在执行: %w", year, err)
	}
	return func() { periodLock.Unlock(ctx) }, nil
}

// CloseMonth 月结
//
// 对（年度, 月份）下每个余额桶：按科目余额方向算期末，
// 损益类科目下月期初清零，资产/负债/权益类结转期末。
// 12 月被显式拒绝——年末推进是更强的独立操作。
func (s *ClosingService) CloseMonth(ctx context.Context, year, month int) error {
	if month < 1 || month > 11 {
		return ErrInvalidPeriod
	}

	unlock, err := s.lockPeriod(ctx, year, "close-month")
	if err != nil {
		return err
	}
	defer unlock()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		buckets, err := s.balanceRepo.ListByPeriod(ctx, tx, year, month)
		if err != nil {
			return err
		}

		for _, bucket := range buckets {
			account, err := s.accountRepo.GetByCode(ctx, tx, bucket.AccountCode)
			if err != nil {
				if errors.Is(err, repository.ErrAccountNotFound) {
					return fmt.Errorf("%w: %s", ErrUnknownAccount, bucket.AccountCode)
				}
				return err
			}

			opening := bucket.Ending(account.Side)
			if account.IsFlowAccount() {
				// 损益类按期间计量，下月从零起算
				opening = decimal.Zero
			}
			if err := s.balanceRepo.SetOpening(ctx, tx, bucket.AccountCode, year, month+1, opening); err != nil {
				return fmt.Errorf("写入下月期初失败: %w", err)
			}
		}

		return s.writeClosingEvent(ctx, tx, "month_closed", year, month, len(buckets))
	})
	if err != nil {
		return err
	}

	log.Printf("[Closing] 月结完成: year=%d month=%d", year, month)
	return nil
}

// CloseYear 年结
//
// 对每个 12 月余额桶：
//   - 损益类科目、"本年利润"科目：下年清零（0 月与 1 月都写零）
//   - "未分配利润"科目：下年期初 = 自身 12 月期末 + 本年利润 12 月期末
//   - 其余资产负债表科目：期末原样结转
//
// 下年 0 月快照与 1 月期初写同一个值。整个年结一个事务，
// 任何失败全量回滚，上年数据保持原样。
func (s *ClosingService) CloseYear(ctx context.Context, year int) error {
	unlock, err := s.lockPeriod(ctx, year, "close-year")
	if err != nil {
		return err
	}
	defer unlock()

	retainedCode := s.cfg.Accounting.RetainedEarnings()
	profitCode := s.cfg.Accounting.CurrentProfit()

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 先算本年利润的 12 月期末，未分配利润要吸收它
		profitEnding := decimal.Zero
		profitBucket, err := s.balanceRepo.Get(ctx, tx, profitCode, year, 12)
		if err != nil {
			return err
		}
		if profitBucket != nil {
			profitAccount, err := s.accountRepo.GetByCode(ctx, tx, profitCode)
			if err != nil {
				if errors.Is(err, repository.ErrAccountNotFound) {
					return fmt.Errorf("%w: %s", ErrUnknownAccount, profitCode)
				}
				return err
			}
			profitEnding = profitBucket.Ending(profitAccount.Side)
		}

		buckets, err := s.balanceRepo.ListByPeriod(ctx, tx, year, 12)
		if err != nil {
			return err
		}

		retainedSeen := false
		for _, bucket := range buckets {
			account, err := s.accountRepo.GetByCode(ctx, tx, bucket.AccountCode)
			if err != nil {
				if errors.Is(err, repository.ErrAccountNotFound) {
					return fmt.Errorf("%w: %s", ErrUnknownAccount, bucket.AccountCode)
				}
				return err
			}

			var opening decimal.Decimal
			switch {
			case bucket.AccountCode == profitCode:
				// 本年利润随损益一起清零
				opening = decimal.Zero
			case account.IsFlowAccount():
				opening = decimal.Zero
			case bucket.AccountCode == retainedCode:
				opening = bucket.Ending(account.Side).Add(profitEnding)
				retainedSeen = true
			default:
				opening = bucket.Ending(account.Side)
			}

			if err := s.writeNextYearOpening(ctx, tx, bucket.AccountCode, year, opening); err != nil {
				return err
			}
		}

		// 未分配利润本年没发生额、连桶都没有时，利润也不能丢
		if !retainedSeen && !profitEnding.IsZero() {
			if err := s.writeNextYearOpening(ctx, tx, retainedCode, year, profitEnding); err != nil {
				return err
			}
		}

		return s.writeClosingEvent(ctx, tx, "year_closed", year, 12, len(buckets))
	})
	if err != nil {
		return err
	}

	log.Printf("[Closing] 年结完成: year=%d -> %d", year, year+1)
	return nil
}

// writeNextYearOpening 下年 0 月快照与 1 月期初必须一致，一起写
func (s *ClosingService) writeNextYearOpening(ctx context.Context, tx *gorm.DB, accountCode string, year int, opening decimal.Decimal) error {
	if err := s.balanceRepo.SetOpening(ctx, tx, accountCode, year+1, 0, opening); err != nil {
		return fmt.Errorf("写入下年快照失败: %w", err)
	}
	if err := s.balanceRepo.SetOpening(ctx, tx, accountCode, year+1, 1, opening); err != nil {
		return fmt.Errorf("写入下年期初失败: %w", err)
	}
	return nil
}

// writeClosingEvent 结转完成事件进发件箱（与结转同事务）
func (s *ClosingService) writeClosingEvent(ctx context.Context, tx *gorm.DB, event string, year, month, bucketCount int) error {
	if s.cfg == nil || s.cfg.Kafka.Topic.PeriodClosed == "" {
		return nil
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"event":        event,
		"year":         year,
		"month":        month,
		"bucket_count": bucketCount,
		"finished_at":  time.Now().Format(time.RFC3339),
	})
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: fmt.Sprintf("%s-%d-%d", event, year, month),
		Topic:      s.cfg.Kafka.Topic.PeriodClosed,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

// TrialBalance 查询（年度, 月份）的科目余额表（试算平衡表）
type TrialBalanceRow struct {
	AccountCode string          `json:"account_code"`
	Name        string          `json:"name"`
	Side        string          `json:"side"`
	Class       string          `json:"class"`
	Opening     decimal.Decimal `json:"opening"`
	DebitTotal  decimal.Decimal `json:"debit_total"`
	CreditTotal decimal.Decimal `json:"credit_total"`
	Ending      decimal.Decimal `json:"ending"`
}

// TrialBalance 列出某期间全部余额桶及期末余额
// 科目表里查不到的科目打日志跳过（只读报表沿用重算的口径）
func (s *ClosingService) TrialBalance(ctx context.Context, year, month int) ([]TrialBalanceRow, error) {
	if month < 0 || month > 12 {
		return nil, fmt.Errorf("月份超出范围: %d", month)
	}

	buckets, err := s.balanceRepo.ListByPeriod(ctx, nil, year, month)
	if err != nil {
		return nil, err
	}

	rows := make([]TrialBalanceRow, 0, len(buckets))
	for _, bucket := range buckets {
		account, err := s.accountRepo.GetByCode(ctx, nil, bucket.AccountCode)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				log.Printf("[Closing] 科目 %s 不在科目表中，试算表跳过", bucket.AccountCode)
				continue
			}
			return nil, err
		}
		rows = append(rows, TrialBalanceRow{
			AccountCode: bucket.AccountCode,
			Name:        account.Name,
			Side:        account.Side,
			Class:       account.Class,
			Opening:     bucket.Opening,
			DebitTotal:  bucket.DebitTotal,
			CreditTotal: bucket.CreditTotal,
			Ending:      bucket.Ending(account.Side),
		})
	}
	return rows, nil
}
