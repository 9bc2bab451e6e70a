package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketgate/internal/candle"
	"marketgate/internal/model"
	"marketgate/pkg/exception"
)

// DefaultTable holds candles for the default instrument class.
const DefaultTable = "candles"

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Row is the persisted form of a candle. (symbol, timestamp) is unique.
type Row struct {
	Symbol    string    `gorm:"column:symbol;type:text;not null"`
	Open      *float64  `gorm:"column:open;type:double precision"`
	High      *float64  `gorm:"column:high;type:double precision"`
	Low       *float64  `gorm:"column:low;type:double precision"`
	Close     *float64  `gorm:"column:close;type:double precision"`
	Volume    *int64    `gorm:"column:volume;type:bigint"`
	Timestamp time.Time `gorm:"column:timestamp;not null"`
}

// Store upserts candles into one relation per instrument class.
type Store struct {
	db    *gorm.DB
	table string
}

// New prepares the table and its unique index, creating them if absent.
func New(ctx context.Context, db *gorm.DB, table string) (*Store, error) {
	if db == nil {
		return nil, exception.ErrStoreNilDB
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, errors.Wrapf(exception.ErrStoreInvalidTable, "%q", table)
	}

	s := &Store{db: db, table: table}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&Row{}); err != nil {
		return errors.Wrapf(err, "migrate table %s", s.table)
	}

	stmt := fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS "idx_%s_symbol_timestamp" ON "%s" ("symbol", "timestamp")`,
		s.table, s.table,
	)
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return errors.Wrapf(err, "create unique index on %s", s.table)
	}
	return nil
}

// Table returns the relation name.
func (s *Store) Table() string {
	return s.table
}

// UpsertBatch inserts candles, silently skipping keys that already exist.
// Within one batch the last candle for a key wins. It returns the number of new rows.
func (s *Store) UpsertBatch(ctx context.Context, candles []model.Candle) (int64, error) {
	if s == nil || s.db == nil {
		return 0, exception.ErrStoreNilDB
	}

	rows := dedupBatch(candles)
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).
		Table(s.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "upsert %d rows into %s", len(rows), s.table)
	}
	return res.RowsAffected, nil
}

// Range returns persisted candles for symbol with from <= timestamp <= to, oldest first.
func (s *Store) Range(ctx context.Context, symbol string, from, to time.Time) ([]model.Candle, error) {
	if s == nil || s.db == nil {
		return nil, exception.ErrStoreNilDB
	}

	var rows []Row
	err := s.db.WithContext(ctx).
		Table(s.table).
		Where("symbol = ? AND timestamp >= ? AND timestamp <= ?", symbol, from.UTC(), to.UTC()).
		Order("timestamp ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "query %s range for %s", s.table, symbol)
	}

	out := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.candle())
	}
	return out, nil
}

// Count returns the number of rows stored for symbol.
func (s *Store) Count(ctx context.Context, symbol string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, exception.ErrStoreNilDB
	}
	var n int64
	if err := s.db.WithContext(ctx).Table(s.table).Where("symbol = ?", symbol).Count(&n).Error; err != nil {
		return 0, errors.Wrapf(err, "count %s rows for %s", s.table, symbol)
	}
	return n, nil
}

func dedupBatch(candles []model.Candle) []Row {
	index := make(map[model.Key]int, len(candles))
	rows := make([]Row, 0, len(candles))
	for _, c := range candles {
		c.Timestamp = candle.TruncateUTC(c.Timestamp)
		row := newRow(c)
		key := c.Key()
		if i, ok := index[key]; ok {
			rows[i] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

func newRow(c model.Candle) Row {
	return Row{
		Symbol:    c.Symbol,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
		Timestamp: c.Timestamp,
	}
}

func (r Row) candle() model.Candle {
	return model.Candle{
		Symbol:    r.Symbol,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    r.Volume,
		Timestamp: r.Timestamp.UTC(),
	}
}
