package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/cache"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/logger"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/metrics"
	"github.com/SINJAPANLLC/sinjapan-manager-ver2-sub000/internal/model"
)

/* ========================================================================
 * Tombstone Purge
 * ========================================================================
 * Deletion leaves a tombstone; this job reclaims tombstones older than
 * the retention window. One instance runs at a time, coordinated
 * through a redis lock, so the job is safe to ship on every replica.
 * ======================================================================== */

const purgeLockKey = "purge:leader"

// Purger permanently removes expired tombstones.
type Purger struct {
	db        *gorm.DB
	cache     *cache.Client
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	batch     int
	stop      chan struct{}
	done      chan struct{}
}

// NewPurger builds the purge job. cache may be nil in single-instance
// deployments; the lock is skipped.
func NewPurger(db *gorm.DB, c *cache.Client, log *logger.Logger, interval, retention time.Duration) *Purger {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &Purger{
		db:        db,
		cache:     c,
		log:       log,
		interval:  interval,
		retention: retention,
		batch:     500,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the purge loop.
func (p *Purger) Start() {
	go p.run()
}

// Stop halts the loop and waits for an in-flight sweep.
func (p *Purger) Stop() {
	close(p.stop)
	<-p.done
}

func (p *Purger) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval/2)
			if err := p.Sweep(ctx); err != nil {
				p.log.Error("purge sweep failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Sweep removes expired tombstones from every registered table. It
// returns without work when another replica holds the lock.
func (p *Purger) Sweep(ctx context.Context) error {
	if p.cache != nil {
		lock := p.cache.NewLock(purgeLockKey, p.interval)
		ok, err := lock.TryAcquire(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn("purge lock release failed", zap.Error(err))
			}
		}()
	}

	cutoff := time.Now().Add(-p.retention).UnixMilli()
	for _, m := range model.AllModels() {
		table, err := tableName(p.db, m)
		if err != nil {
			return err
		}
		removed, err := p.purgeTable(ctx, m, cutoff)
		if err != nil {
			return err
		}
		if removed > 0 {
			metrics.PurgedRows.WithLabelValues(table).Add(float64(removed))
			p.log.Info("purged tombstones",
				zap.String("table", table),
				zap.Int64("rows", removed))
		}
	}
	return nil
}

func (p *Purger) purgeTable(ctx context.Context, m any, cutoff int64) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
		// id batches keep the statement portable across drivers
		var ids []int64
		err := p.db.WithContext(ctx).Unscoped().Model(m).
			Where("deleted_at > 0 AND deleted_at < ?", cutoff).
			Limit(p.batch).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		result := p.db.WithContext(ctx).Unscoped().Delete(m, "id IN ?", ids)
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
		if len(ids) < p.batch {
			return total, nil
		}
	}
}

func tableName(db *gorm.DB, m any) (string, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(m); err != nil {
		return "", err
	}
	return stmt.Schema.Table, nil
}
