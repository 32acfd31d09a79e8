package service

import (
	"context"
	"strconv"
	"strings"

	auditdomain "github.com/logiport/logiport/internal/audit/domain"
	"github.com/logiport/logiport/internal/clock"
	"github.com/logiport/logiport/internal/config"
	numberingdomain "github.com/logiport/logiport/internal/numbering/domain"
	obsmetrics "github.com/logiport/logiport/internal/observability/metrics"
	"github.com/logiport/logiport/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// allocRetries bounds how often an allocation is retried after the database
// reports a lock conflict. SQLite deployments hit this under write bursts.
const allocRetries = 5

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Repo      numberingdomain.Repository
	Numbering *config.NumberingConfigHolder
	Audit     auditdomain.Service
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      numberingdomain.Repository
	numbering *config.NumberingConfigHolder
	audit     auditdomain.Service
	metrics   *obsmetrics.Metrics
}

func NewService(p Params) numberingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("numbering.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		numbering: p.Numbering,
		audit:     p.Audit,
		metrics:   p.Metrics,
	}
}

// Next reserves the next counter value. The reservation commits in its own
// transaction before the caller uses the number, so a failed insert later
// burns the number instead of reusing it.
func (s *Service) Next(ctx context.Context, key string) (int64, error) {
	key, err := s.validKey(key)
	if err != nil {
		return 0, err
	}

	var value int64
	var lastErr error
	for attempt := 0; attempt < allocRetries; attempt++ {
		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			allocated, err := s.repo.IncrementAndGet(ctx, tx, key, s.clock.Now())
			if err != nil {
				return err
			}
			value = allocated
			return nil
		})
		if lastErr == nil {
			s.metrics.RecordNumberAllocated(ctx, key)
			return value, nil
		}
		if !db.IsLockConflictErr(lastErr) {
			return 0, lastErr
		}
		obsmetrics.Numbering().ObserveAllocationRetry(key, obsmetrics.AllocationReasonLockConflict)
		s.log.Debug("counter allocation retry",
			zap.String("key", key),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}

	obsmetrics.Numbering().ObserveAllocationFailure(key, obsmetrics.AllocationReasonLockConflict)
	s.log.Error("counter allocation exhausted retries", zap.String("key", key), zap.Error(lastErr))
	return 0, numberingdomain.ErrAllocationExhausted
}

func (s *Service) NextTransactionNumber(ctx context.Context) (string, error) {
	value, err := s.Next(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		return "", err
	}
	return s.FormatNumber(value), nil
}

// Peek reads without reserving. Two sessions previewing concurrently may see
// the same value; only Next hands out uniqueness.
func (s *Service) Peek(ctx context.Context, key string) (int64, error) {
	key, err := s.validKey(key)
	if err != nil {
		return 0, err
	}
	current, err := s.repo.Get(ctx, s.db, key)
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (s *Service) PreviewTransactionNumber(ctx context.Context) (string, error) {
	value, err := s.Peek(ctx, numberingdomain.CounterTransactionLastNumber)
	if err != nil {
		return "", err
	}
	return s.FormatNumber(value), nil
}

func (s *Service) SetCounter(ctx context.Context, key string, value int64) error {
	key, err := s.validKey(key)
	if err != nil {
		return err
	}
	if value < 0 {
		return numberingdomain.ErrInvalidCounterValue
	}

	previous, err := s.repo.Get(ctx, s.db, key)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, s.db, key, value, s.clock.Now()); err != nil {
		return err
	}

	s.audit.Record(ctx, auditdomain.Entry{
		Action:     "counter_set",
		TableName:  "counters",
		Details:    key,
		BeforeData: map[string]any{"value": previous},
		AfterData:  map[string]any{"value": value},
	})
	return nil
}

func (s *Service) FormatNumber(value int64) string {
	return s.numbering.Get().TransactionPrefix + strconv.FormatInt(value, 10)
}

// validKey trims and checks a counter key against the configured set.
func (s *Service) validKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || !s.numbering.Get().KnownCounterKey(key) {
		return "", numberingdomain.ErrInvalidCounterKey
	}
	return key, nil
}

// SyncLastNumber walks assigned transaction numbers and rewinds the counter
// to the highest automatic one. Manually entered numbers with separators are
// ignored, matching what the formatter would never emit. The counter value is
// read before the scan and written with a compare-and-swap, so an allocation
// committing mid-sync moves the counter, voids the swap, and forces a rescan
// that sees the newly assigned number.
func (s *Service) SyncLastNumber(ctx context.Context) (int64, error) {
	key := numberingdomain.CounterTransactionLastNumber
	var lastErr error
	for attempt := 0; attempt < allocRetries; attempt++ {
		previous, err := s.repo.Get(ctx, s.db, key)
		if err != nil {
			return 0, err
		}

		numbers, err := s.repo.ListTransactionNumbers(ctx, s.db)
		if err != nil {
			return 0, err
		}

		prefix := s.numbering.Get().TransactionPrefix
		var max int64
		for _, number := range numbers {
			value, ok := parseAssignedNumber(number, prefix)
			if !ok {
				continue
			}
			if value > max {
				max = value
			}
		}

		if previous == max {
			obsmetrics.Numbering().ObserveCounterSync(false)
			return max, nil
		}

		swapped, err := s.repo.CompareAndSwap(ctx, s.db, key, previous, max, s.clock.Now())
		if err != nil {
			if db.IsLockConflictErr(err) {
				lastErr = err
				continue
			}
			return 0, err
		}
		if !swapped {
			lastErr = numberingdomain.ErrSyncContention
			s.log.Debug("counter sync lost the race, rescanning",
				zap.String("key", key),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		s.audit.Record(ctx, auditdomain.Entry{
			Action:     "counter_sync",
			TableName:  "counters",
			Details:    key,
			BeforeData: map[string]any{"value": previous},
			AfterData:  map[string]any{"value": max},
		})
		obsmetrics.Numbering().ObserveCounterSync(true)
		return max, nil
	}

	s.log.Warn("counter sync exhausted retries", zap.String("key", key), zap.Error(lastErr))
	return 0, numberingdomain.ErrSyncContention
}

func parseAssignedNumber(number, prefix string) (int64, bool) {
	number = strings.TrimSpace(number)
	if number == "" {
		return 0, false
	}
	if strings.ContainsAny(number, "/- ") {
		return 0, false
	}
	digits := number
	if prefix != "" {
		if !strings.HasPrefix(number, prefix) {
			return 0, false
		}
		digits = strings.TrimPrefix(number, prefix)
	}
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || value < 0 {
		return 0, false
	}
	return value, true
}
