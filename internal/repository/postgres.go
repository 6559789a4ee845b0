// Package repository содержит журнал событий сессии в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/shop-admin/internal/model"
	"github.com/mmeshcher/shop-admin/internal/session"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SessionEvent описывает запись журнала о замене сессии.
type SessionEvent struct {
	ID              int64               `json:"id"`
	Kind            session.EventKind   `json:"kind"`
	MerchantID      *int64              `json:"merchantID"`
	ShopName        *string             `json:"shopName"`
	Plan            *string             `json:"plan"`
	PlanPrice       decimal.NullDecimal `json:"planPrice"`
	NextPaymentDate *time.Time          `json:"nextPaymentDate"`
	RecordedAt      time.Time           `json:"recordedAt"`
}

// PostgresRepository хранит журнал событий сессии в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт репозиторий и применяет миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// RecordSessionEvent сохраняет событие замены сессии вместе с ценой тарифа на момент события.
// Для отсутствующей сессии записывается только вид события.
func (r *PostgresRepository) RecordSessionEvent(ctx context.Context, kind session.EventKind, s *model.Session) error {
	var (
		merchantID *int64
		shopName   *string
		plan       *string
		price      decimal.NullDecimal
		nextDate   *time.Time
	)
	if s != nil {
		merchantID = &s.ID
		shopName = &s.ShopName
		plan = s.Plan
		price = planPrice(s.Plan)
		nextDate = s.NextPaymentDate
	}

	return withRetry(ctx, r.delays, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO session_events (kind, merchant_id, shop_name, plan, plan_price, next_payment_date)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			string(kind), merchantID, shopName, plan, price, nextDate,
		)
		if err != nil {
			return fmt.Errorf("insert session event: %w", err)
		}
		return nil
	})
}

// RecentEvents возвращает последние события продавца, начиная с новых.
func (r *PostgresRepository) RecentEvents(ctx context.Context, merchantID int64, limit int) ([]SessionEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, merchant_id, shop_name, plan, plan_price, next_payment_date, recorded_at
		 FROM session_events
		 WHERE merchant_id = $1
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT $2`,
		merchantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select session events: %w", err)
	}
	defer rows.Close()

	var res []SessionEvent
	for rows.Next() {
		var (
			e    SessionEvent
			kind string
		)
		if err := rows.Scan(&e.ID, &kind, &e.MerchantID, &e.ShopName, &e.Plan, &e.PlanPrice, &e.NextPaymentDate, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		e.Kind = session.EventKind(kind)
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func planPrice(planID *string) decimal.NullDecimal {
	if planID == nil {
		return decimal.NullDecimal{}
	}
	p, ok := model.FindPlan(*planID)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.MonthlyPrice)
}

func withRetry(ctx context.Context, delays []time.Duration, fn func() error) error {
	var err error

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(delays) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delays[i]):
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected ||
			pgerrcode.IsConnectionException(pgErr.Code)
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
