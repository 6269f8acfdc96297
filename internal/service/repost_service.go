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

// RepostService 年度重算引擎
//
// 增量过账默认余额桶已经是对的；批量导入之后、或者怀疑余额漂移时，
// 唯一正确的修复路径是丢掉增量状态，从流水全量重建：
//  1. 清零目标年度全部桶的借贷发生额（期初不动，那是上年结转的）
//  2. 按（科目, 月份, 方向）聚合全年分录
//  3. 聚合结果覆写进桶，桶不存在则建
//  4. 逐科目从 1 月期初起逐月滚动期末->下月期初
//
// 整个过程一个长事务，期间对同年度的实时过账会被阻塞——批量对账
// 是操作员手工发起的低频动作，这是接受的代价。
type RepostService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	journalRepo *repository.JournalRepository
	balanceRepo *repository.BalanceRepository
	accountRepo *repository.AccountRepository
	aliasRepo   *repository.AliasRepository
	outboxRepo  *repository.OutboxRepository
}

func NewRepostService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *RepostService {
	return &RepostService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		journalRepo: repository.NewJournalRepository(db),
		balanceRepo: repository.NewBalanceRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		aliasRepo:   repository.NewAliasRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type aggregateKey struct {
	accountCode string
	month       int
	side        string
}

// Repost 重建目标年度的余额桶
func (s *RepostService) Repost(ctx context.Context, year int) error {
	// 未配置 Redis 时退化为仅依赖数据库事务（单机部署场景）
	if s.redisClient != nil {
		periodLock := lock.NewPeriodLock(s.redisClient, year, "repost")
		if err := periodLock.Lock(ctx, 200*time.Millisecond, 50); err != nil {
			return fmt.Errorf("年度 %d 已有批量操作在执行: %w", year, err)
		}
		defer periodLock.Unlock(ctx)
	}

	start := time.Now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 1. 清零发生额
		if err := s.balanceRepo.ZeroMovements(ctx, tx, year); err != nil {
			return fmt.Errorf("清零年度发生额失败: %w", err)
		}

		// 2. 聚合全年分录
		rows, err := s.journalRepo.AggregateYear(ctx, tx, year)
		if err != nil {
			return fmt.Errorf("聚合年度流水失败: %w", err)
		}

		// 3. 解析两段码并归并后覆写
		// 不同的两段码可能映射到同一个正式科目，解析后必须再归并一次
		merged := make(map[aggregateKey]decimal.Decimal, len(rows))
		for _, row := range rows {
			resolved, err := s.resolveAccount(ctx, tx, row.AccountCode)
			if err != nil {
				return err
			}
			k := aggregateKey{accountCode: resolved, month: row.Month, side: row.Side}
			merged[k] = merged[k].Add(row.Total)
		}
		for k, total := range merged {
			if err := s.balanceRepo.SetMovement(ctx, tx, k.accountCode, year, k.month, k.side, total); err != nil {
				return fmt.Errorf("覆写余额桶失败: %w", err)
			}
		}

		// 4. 滚动期初
		if err := s.rollForward(ctx, tx, year); err != nil {
			return err
		}

		return s.writeRepostEvent(ctx, tx, year, len(merged))
	})
	if err != nil {
		return err
	}

	log.Printf("[Repost] 年度 %d 重算完成，耗时 %v", year, time.Since(start))
	return nil
}

// rollForward 逐科目从 1 月期初起逐月滚动：m 月期末写入 m+1 月期初
//
// 科目表里查不到的科目打日志跳过而不是报错——历史余额可能引用
// 已经删掉的科目，重算不应该因此整体失败
func (s *RepostService) rollForward(ctx context.Context, tx *gorm.DB, year int) error {
	codes, err := s.balanceRepo.ListYearAccountCodes(ctx, tx, year)
	if err != nil {
		return err
	}

	for _, code := range codes {
		account, err := s.accountRepo.GetByCode(ctx, tx, code)
		if err != nil {
			if errors.Is(err, repository.ErrAccountNotFound) {
				log.Printf("[Repost] 科目 %s 不在科目表中，跳过期初滚动", code)
				continue
			}
			return err
		}

		running := decimal.Zero
		first, err := s.balanceRepo.Get(ctx, tx, code, year, 1)
		if err != nil {
			return err
		}
		if first != nil {
			running = first.Opening
		}

		for m := 1; m <= 11; m++ {
			bucket, err := s.balanceRepo.Get(ctx, tx, code, year, m)
			if err != nil {
				return err
			}
			if bucket != nil {
				bucket.Opening = running
				running = bucket.Ending(account.Side)
			}
			// 该月无桶时期末即滚动值本身，照样写进下月期初
			if err := s.balanceRepo.SetOpening(ctx, tx, code, year, m+1, running); err != nil {
				return fmt.Errorf("滚动期初失败: %w", err)
			}
		}
	}
	return nil
}

// resolveAccount 事务内解析两段码，规则与 AccountService.ResolveAccount 一致
func (s *RepostService) resolveAccount(ctx context.Context, tx *gorm.DB, code2 string) (string, error) {
	alias, err := s.aliasRepo.GetByCode(ctx, tx, code2)
	if err != nil {
		return "", err
	}
	if alias != nil {
		return alias.AccountCode, nil
	}
	return code2 + model.DefaultAliasSuffix, nil
}

// writeRepostEvent 重算完成事件进发件箱（与重算同事务）
func (s *RepostService) writeRepostEvent(ctx context.Context, tx *gorm.DB, year, bucketCount int) error {
	if s.cfg == nil || s.cfg.Kafka.Topic.RepostDone == "" {
		return nil
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"year":         year,
		"bucket_count": bucketCount,
		"finished_at":  time.Now().Format(time.RFC3339),
	})
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: fmt.Sprintf("repost-%d", year),
		Topic:      s.cfg.Kafka.Topic.RepostDone,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
