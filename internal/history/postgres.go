package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ppiankov/curator/internal/model"
)

// historyRow maps curator_history.
type historyRow struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ClusterID   string    `gorm:"column:cluster_id;type:text;not null;index"`
	Label       string    `gorm:"column:label;type:text"`
	MemberURLs  []string  `gorm:"column:member_urls;type:jsonb;not null;serializer:json"`
	PublishedAt time.Time `gorm:"column:published_at;type:timestamptz;not null;index"`
}

func (historyRow) TableName() string { return "curator_history" }

// PostgresStore keeps history in a Postgres table through gorm.
type PostgresStore struct {
	gdb  *gorm.DB
	opts Options
}

// NewPostgresStore connects to dsn. The table is created only in bootstrap
// mode; otherwise a missing table is reported as ErrNotFound.
func NewPostgresStore(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("open gorm database: %w", err)}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("get gorm sql db: %w", err)}
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, &StoreError{Op: "open", Err: fmt.Errorf("ping database: %w", err)}
	}

	store := &PostgresStore{gdb: gdb, opts: opts}
	if err := store.ensureTable(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	db := s.gdb.WithContext(ctx)
	if db.Migrator().HasTable(&historyRow{}) {
		return nil
	}
	if !s.opts.Bootstrap {
		return &StoreError{Op: "open", Err: fmt.Errorf("table curator_history: %w", ErrNotFound)}
	}
	if err := db.AutoMigrate(&historyRow{}); err != nil {
		return &StoreError{Op: "open", Err: fmt.Errorf("gorm auto-migrate: %w", err)}
	}
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) (*model.History, error) {
	var rows []historyRow
	if err := s.gdb.WithContext(ctx).Order("published_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, &StoreError{Op: "load", Err: err}
	}

	h := &model.History{Records: make([]model.HistoryRecord, 0, len(rows))}
	for _, r := range rows {
		rec := fromRow(r)
		h.Records = append(h.Records, rec)
		if rec.PublishedAt.After(h.LastUpdated) {
			h.LastUpdated = rec.PublishedAt
		}
	}
	return h, nil
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, records []model.HistoryRecord, now time.Time) error {
	rows := make([]historyRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, toRow(r))
	}

	err := s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return fmt.Errorf("insert records: %w", err)
			}
		}
		if s.opts.RetentionDays > 0 {
			cutoff := now.AddDate(0, 0, -s.opts.RetentionDays)
			if err := tx.Where("published_at < ?", cutoff).Delete(&historyRow{}).Error; err != nil {
				return fmt.Errorf("apply retention: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Op: "append", Err: err}
	}
	return nil
}

// Prune implements Store.
func (s *PostgresStore) Prune(ctx context.Context, now time.Time) (int, error) {
	if s.opts.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -s.opts.RetentionDays)
	res := s.gdb.WithContext(ctx).Where("published_at < ?", cutoff).Delete(&historyRow{})
	if res.Error != nil {
		return 0, &StoreError{Op: "prune", Err: res.Error}
	}
	return int(res.RowsAffected), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRow(r model.HistoryRecord) historyRow {
	return historyRow{
		ClusterID:   r.ClusterID,
		Label:       r.Label,
		MemberURLs:  r.MemberURLs,
		PublishedAt: r.PublishedAt.UTC(),
	}
}

func fromRow(r historyRow) model.HistoryRecord {
	return model.HistoryRecord{
		ClusterID:   r.ClusterID,
		Label:       r.Label,
		MemberURLs:  r.MemberURLs,
		PublishedAt: r.PublishedAt.UTC(),
	}
}
