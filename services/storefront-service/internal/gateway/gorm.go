package gateway

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/suteetoe/storefront/gomicro/database"
	"github.com/suteetoe/storefront/gomicro/retry"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options tunes the per-call timeout and transient retry budget.
type Options struct {
	Timeout time.Duration
	Retries uint
	Backoff time.Duration
}

// GormGateway implements Gateway on top of gorm.
type GormGateway struct {
	db     *gorm.DB
	opts   Options
	log    *zap.Logger
	models map[Collection]func() interface{}
}

// NewGormGateway wraps db. A zero Timeout falls back to five seconds.
func NewGormGateway(db *gorm.DB, opts Options, log *zap.Logger) *GormGateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 50 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GormGateway{
		db:   db,
		opts: opts,
		log:  log,
		models: map[Collection]func() interface{}{
			Tenants:  func() interface{} { return &model.Tenant{} },
			Products: func() interface{} { return &model.Product{} },
			Orders:   func() interface{} { return &model.Order{} },
		},
	}
}

// Migrate creates or updates the tables behind every collection.
func (g *GormGateway) Migrate(ctx context.Context) error {
	return database.MigrateModels(g.db.WithContext(ctx), model.All()...)
}

// Transaction runs fn against a gateway bound to one database transaction. fn's writes
// commit together or not at all. Calls inside fn are not retried.
func (g *GormGateway) Transaction(ctx context.Context, fn func(tx Gateway) error) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		opts := g.opts
		opts.Retries = 0
		return fn(&GormGateway{db: tx, opts: opts, log: g.log, models: g.models})
	})
	if err != nil {
		return classify(ctx, err)
	}
	return nil
}

func (g *GormGateway) modelFor(c Collection) (interface{}, error) {
	newModel, ok := g.models[c]
	if !ok {
		return nil, fmt.Errorf("unknown collection %q", c)
	}
	return newModel(), nil
}

func (g *GormGateway) policy() retry.Policy {
	return retry.Policy{
		MaxTries:        g.opts.Retries + 1,
		InitialInterval: g.opts.Backoff,
		MaxInterval:     20 * g.opts.Backoff,
		Retryable:       apperr.IsTransient,
	}
}

// run executes op under the per-call timeout, classifies its error and retries transient
// failures within the retry budget.
func run[T any](ctx context.Context, g *GormGateway, name string, c Collection, op func(tx *gorm.DB) (T, error)) (T, error) {
	return runWith(ctx, g, g.policy(), name, c, op)
}

func runWith[T any](ctx context.Context, g *GormGateway, p retry.Policy, name string, c Collection, op func(tx *gorm.DB) (T, error)) (T, error) {
	attempt := 0
	return retry.Do(ctx, p, func(ctx context.Context) (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()

		v, err := op(g.db.WithContext(callCtx))
		if err != nil {
			err = classify(callCtx, err)
			if apperr.IsTransient(err) {
				g.log.Warn("Transient gateway failure",
					zap.String("op", name),
					zap.String("collection", string(c)),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}
		}
		return v, err
	})
}

func (g *GormGateway) Fetch(ctx context.Context, c Collection, q Query, dest interface{}) error {
	m, err := g.modelFor(c)
	if err != nil {
		return err
	}
	_, err = run(ctx, g, "fetch", c, func(tx *gorm.DB) (struct{}, error) {
		tx = tx.Model(m)
		if len(q.Filter) > 0 {
			tx = tx.Where(map[string]interface{}(q.Filter))
		}
		if q.OrderBy != "" {
			order := q.OrderBy
			if q.Desc {
				order += " DESC"
			}
			tx = tx.Order(order)
		}
		if q.Limit > 0 {
			tx = tx.Limit(q.Limit)
		}
		return struct{}{}, tx.Find(dest).Error
	})
	return err
}

func (g *GormGateway) Insert(ctx context.Context, c Collection, record Identified) error {
	if _, err := g.modelFor(c); err != nil {
		return err
	}
	if record.GetID() == "" {
		record.SetID(uuid.NewString())
	}

	attempt := 0
	_, err := run(ctx, g, "insert", c, func(tx *gorm.DB) (struct{}, error) {
		attempt++
		err := tx.Create(record).Error
		if err != nil && attempt > 1 && isDuplicate(err) {
			// an earlier attempt may have committed before its timeout fired
			var n int64
			if cerr := tx.Model(record).Where("id = ?", record.GetID()).Count(&n).Error; cerr == nil && n == 1 {
				return struct{}{}, nil
			}
		}
		return struct{}{}, err
	})
	return err
}

// Update retries transient failures only for unguarded writes. A guarded write that timed
// out may have committed, and repeating it would match nothing; the caller re-reads instead.
func (g *GormGateway) Update(ctx context.Context, c Collection, id string, fields map[string]interface{}, guard Filter) (int64, error) {
	m, err := g.modelFor(c)
	if err != nil {
		return 0, err
	}
	p := g.policy()
	if len(guard) > 0 {
		p.MaxTries = 1
	}
	return runWith(ctx, g, p, "update", c, func(tx *gorm.DB) (int64, error) {
		tx = tx.Model(m).Where("id = ?", id)
		if len(guard) > 0 {
			tx = tx.Where(map[string]interface{}(guard))
		}
		res := tx.Updates(fields)
		return res.RowsAffected, res.Error
	})
}

func (g *GormGateway) Delete(ctx context.Context, c Collection, id string) (int64, error) {
	return g.DeleteWhere(ctx, c, Filter{"id": id})
}

func (g *GormGateway) DeleteWhere(ctx context.Context, c Collection, filter Filter) (int64, error) {
	m, err := g.modelFor(c)
	if err != nil {
		return 0, err
	}
	if len(filter) == 0 {
		return 0, errors.New("refusing to delete without a filter")
	}
	return run(ctx, g, "delete", c, func(tx *gorm.DB) (int64, error) {
		res := tx.Where(map[string]interface{}(filter)).Delete(m)
		return res.RowsAffected, res.Error
	})
}

func (g *GormGateway) Count(ctx context.Context, c Collection, filter Filter) (int64, error) {
	m, err := g.modelFor(c)
	if err != nil {
		return 0, err
	}
	return run(ctx, g, "count", c, func(tx *gorm.DB) (int64, error) {
		var n int64
		tx = tx.Model(m)
		if len(filter) > 0 {
			tx = tx.Where(map[string]interface{}(filter))
		}
		err := tx.Count(&n).Error
		return n, err
	})
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}

// classify maps driver and context errors onto the apperr taxonomy.
func classify(ctx context.Context, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.CodeNotFound, "record not found", err)
	case isDuplicate(err):
		return apperr.Wrap(apperr.CodeConflict, "record already exists", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperr.Wrap(apperr.CodeTransient, "storage timeout", err)
	case errors.Is(err, driver.ErrBadConn):
		return apperr.Wrap(apperr.CodeTransient, "storage connection lost", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Wrap(apperr.CodeTransient, "storage unreachable", err)
	}
	return err
}
