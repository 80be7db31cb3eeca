// Package app wires the stores, services and ledger engine from config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/laundrydesk/laundrydesk/internal/account"
	accountStore "github.com/laundrydesk/laundrydesk/internal/account/store"
	"github.com/laundrydesk/laundrydesk/internal/catalog"
	catalogStore "github.com/laundrydesk/laundrydesk/internal/catalog/store"
	"github.com/laundrydesk/laundrydesk/internal/config"
	"github.com/laundrydesk/laundrydesk/internal/database"
	"github.com/laundrydesk/laundrydesk/internal/events"
	"github.com/laundrydesk/laundrydesk/internal/export"
	"github.com/laundrydesk/laundrydesk/internal/invoice"
	invoiceStore "github.com/laundrydesk/laundrydesk/internal/invoice/store"
	"github.com/laundrydesk/laundrydesk/internal/ledger"
	ledgerStore "github.com/laundrydesk/laundrydesk/internal/ledger/store"
	"github.com/laundrydesk/laundrydesk/internal/lock"
	"github.com/laundrydesk/laundrydesk/internal/store/memory"
)

type Services struct {
	Accounts *account.Service
	Catalog  *catalog.Service
	Invoices *invoice.Service
	Ledger   *ledger.Engine
	Export   *export.Service

	db   *sql.DB
	rdb  *redis.Client
	nats *nats.Conn
}

// Build connects to the configured backends. Redis and NATS are optional.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	s := &Services{}

	var (
		locker    ledger.Locker    = lock.NewLocal()
		publisher events.Publisher = events.Nop{}
	)

	if cfg.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}

		s.rdb = rdb
		locker = lock.NewRedis(rdb, cfg.Ledger.LockTTL)
	}

	if cfg.NATS.URL != "" {
		nc, err := database.NewNATS(cfg.NATS.URL, cfg.App.Name)
		if err != nil {
			s.Close()
			return nil, err
		}

		s.nats = nc
		publisher = events.NewNATS(nc)
	}

	var (
		accounts ledger.AccountFinder
		items    catalog.Repository
		invoices invoice.Repository
		txs      ledger.Store
	)

	switch cfg.App.Storage {
	case config.StorageMemory:
		mem, err := newDemoStore(ctx)
		if err != nil {
			s.Close()
			return nil, err
		}

		accounts, items, invoices, txs = mem, mem, mem, mem
	default:
		db, err := database.New(ctx, cfg.ConnectionString())
		if err != nil {
			s.Close()
			return nil, err
		}

		s.db = db
		accounts, items, invoices, txs = accountStore.New(db), catalogStore.New(db), invoiceStore.New(db), ledgerStore.New(db)
	}

	s.Accounts = account.NewService(accounts)
	s.Catalog = catalog.NewService(items)
	s.Invoices = invoice.NewService(invoices, invoice.WithPublisher(publisher))
	s.Ledger = ledger.NewEngine(accounts, items, txs,
		ledger.WithLocker(locker),
		ledger.WithPublisher(publisher),
		ledger.WithReadyAfter(cfg.Ledger.ReadyAfter),
		ledger.WithRetries(cfg.Ledger.CommitRetries),
		ledger.WithTimeout(cfg.Ledger.OperationTimeout),
	)

	s.Export = export.NewService(s.Invoices, s.Catalog)

	slog.Info("services ready",
		"storage", cfg.App.Storage,
		"redis_lock", s.rdb != nil,
		"events", s.nats != nil,
	)

	return s, nil
}

// DB returns the Postgres handle, or nil with memory storage.
func (s *Services) DB() *sql.DB {
	return s.db
}

func (s *Services) Close() {
	if s.nats != nil {
		if err := s.nats.Drain(); err != nil {
			slog.Warn("failed to drain nats", "error", err)
		}
	}

	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			slog.Warn("failed to close redis", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("failed to close database", "error", err)
		}
	}
}

func newDemoStore(ctx context.Context) (*memory.Store, error) {
	mem := memory.New()
	mem.PutAccount(account.Account{Code: "DEMO-1", Balance: 100})

	err := mem.UpsertItems(ctx, []*catalog.Item{
		{Name: "Shirt", UnitCost: 3},
		{Name: "Trousers", UnitCost: 5},
		{Name: "Duvet", UnitCost: 12},
	})
	if err != nil {
		return nil, fmt.Errorf("seeding demo catalog: %w", err)
	}

	return mem, nil
}
