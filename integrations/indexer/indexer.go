package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"reflectledger/core/events"
	"reflectledger/crypto"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// accountRoles lists the attribute keys that carry account addresses.
var accountRoles = []string{"from", "to", "owner", "spender", "account", "previous", "next"}

var zeroAccount = crypto.FromCommon(common.Address{}).String()

// Indexer persists ledger events through gorm. It implements events.Emitter;
// write failures are logged and surfaced through Err since emitters cannot
// fail the ledger call that produced the event.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu      sync.Mutex
	seq     uint64
	lastErr error
}

// Open connects to dsn and migrates it. postgres:// and postgresql:// URLs
// use the Postgres driver; anything else is a sqlite path or URI.
func Open(dsn string) (*Indexer, error) {
	db, err := gorm.Open(dialectorFor(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", dsn, err)
	}
	return New(db)
}

func dialectorFor(dsn string) gorm.Dialector {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// New wraps an existing gorm handle, which may use any dialect.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last EventRecord
	res := db.Order("seq desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", res.Error)
	}
	return &Indexer{
		db:     db,
		logger: slog.Default(),
		nowFn:  func() time.Time { return time.Now().UTC() },
		seq:    last.Seq,
	}, nil
}

// SetLogger overrides the logger used for write failures.
func (ix *Indexer) SetLogger(l *slog.Logger) {
	if l != nil {
		ix.logger = l
	}
}

// SetNowFunc overrides the clock stamped on new records.
func (ix *Indexer) SetNowFunc(now func() time.Time) {
	if now != nil {
		ix.nowFn = now
	}
}

// DB exposes the underlying handle.
func (ix *Indexer) DB() *gorm.DB { return ix.db }

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Err returns the most recent write failure, if any.
func (ix *Indexer) Err() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.lastErr
}

// Emit stores the event.
func (ix *Indexer) Emit(e events.Event) {
	if e == nil {
		return
	}
	if err := ix.Store(context.Background(), e); err != nil {
		ix.logger.Error("index event failed",
			slog.String("type", e.EventType()),
			slog.String("error", err.Error()))
	}
}

// Store persists the event and returns the write error.
func (ix *Indexer) Store(ctx context.Context, e events.Event) error {
	evt := e.Event()
	if evt == nil {
		return nil
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return ix.fail(err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	rec := EventRecord{
		ID:         uuid.New(),
		Seq:        ix.seq + 1,
		Type:       evt.Type,
		Attributes: string(attrs),
		CreatedAt:  ix.nowFn(),
	}
	rec.Accounts = linkedAccounts(rec.ID, evt.Attributes)
	if err := ix.db.WithContext(ctx).Create(&rec).Error; err != nil {
		ix.lastErr = fmt.Errorf("indexer: store %s: %w", evt.Type, err)
		return ix.lastErr
	}
	ix.seq = rec.Seq
	return nil
}

func (ix *Indexer) fail(err error) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.lastErr = fmt.Errorf("indexer: %w", err)
	return ix.lastErr
}

func linkedAccounts(id uuid.UUID, attrs map[string]string) []EventAccount {
	var out []EventAccount
	for _, role := range accountRoles {
		account, ok := attrs[role]
		if !ok || account == "" || account == zeroAccount {
			continue
		}
		out = append(out, EventAccount{EventID: id, Account: account, Role: role})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

// Filter narrows a query. Zero fields match everything.
type Filter struct {
	Type     string
	Account  common.Address
	AfterSeq uint64
	Limit    int
}

// Query returns matching events in emission order.
func (ix *Indexer) Query(ctx context.Context, f Filter) ([]EventRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	q := ix.scope(ctx, f).Preload("Accounts").Order("seq asc").Limit(limit)
	var out []EventRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("indexer: query: %w", err)
	}
	return out, nil
}

// Count returns the number of matching events, ignoring the limit.
func (ix *Indexer) Count(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := ix.scope(ctx, f).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("indexer: count: %w", err)
	}
	return n, nil
}

func (ix *Indexer) scope(ctx context.Context, f Filter) *gorm.DB {
	q := ix.db.WithContext(ctx).Model(&EventRecord{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.AfterSeq > 0 {
		q = q.Where("seq > ?", f.AfterSeq)
	}
	if f.Account != (common.Address{}) {
		account := crypto.FromCommon(f.Account).String()
		linked := ix.db.Model(&EventAccount{}).Select("event_id").Where("account = ?", account)
		q = q.Where("id IN (?)", linked)
	}
	return q
}
