// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/waitlist-go/internal/components/waitlist"
	"github.com/MahdiBaghbani/waitlist-go/internal/platform/store"
)

// DBFile is the database file name inside the data directory.
const DBFile = "waitlist.db"

func init() {
	store.Register("sqlite", NewDriver)
}

// entryRow is the persisted layout of a waitlist entry.
// Seq is the commit sequence; Position is assigned inside the insert transaction.
type entryRow struct {
	Seq       int64                                 `gorm:"column:seq;primaryKey;autoIncrement"`
	ID        string                                `gorm:"column:id;size:36;not null;uniqueIndex"`
	Email     string                                `gorm:"column:email;not null;uniqueIndex"`
	Source    string                                `gorm:"column:source;not null"`
	Status    string                                `gorm:"column:status;not null;index"`
	Position  *int64                                `gorm:"column:position;uniqueIndex"`
	CreatedAt time.Time                             `gorm:"column:created_at;not null;index;autoCreateTime:false"`
	UpdatedAt time.Time                             `gorm:"column:updated_at;not null;autoUpdateTime:false"`
	InvitedAt *time.Time                            `gorm:"column:invited_at"`
	JoinedAt  *time.Time                            `gorm:"column:joined_at"`
	Metadata  datatypes.JSONType[waitlist.Metadata] `gorm:"column:metadata"`
	Notes     string                                `gorm:"column:notes;not null;default:''"`
}

func (entryRow) TableName() string { return "waitlist_entries" }

func toRow(e *waitlist.Entry) *entryRow {
	return &entryRow{
		ID:        e.ID,
		Email:     e.Email,
		Source:    string(e.Source),
		Status:    string(e.Status),
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
		InvitedAt: e.InvitedAt,
		JoinedAt:  e.JoinedAt,
		Metadata:  datatypes.NewJSONType(e.Metadata),
		Notes:     e.Notes,
	}
}

func (r *entryRow) toEntry() *waitlist.Entry {
	e := &waitlist.Entry{
		ID:        r.ID,
		Email:     r.Email,
		Source:    waitlist.Source(r.Source),
		Status:    waitlist.Status(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
		InvitedAt: utcPtr(r.InvitedAt),
		JoinedAt:  utcPtr(r.JoinedAt),
		Metadata:  r.Metadata.Data(),
		Notes:     r.Notes,
	}
	if r.Position != nil {
		e.Position = *r.Position
	}
	return e
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Driver implements store.Driver using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	dsn := filepath.Join(d.dataDir, DBFile) + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite has a single writer; one connection serializes transactions.
	sqlDB.SetMaxOpenConns(1)

	d.db = db

	if err := db.WithContext(ctx).AutoMigrate(&entryRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	d.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Driver) conn(ctx context.Context) (*gorm.DB, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}
	return d.db.WithContext(ctx), nil
}

// Create inserts the entry and assigns its position in the same transaction.
func (d *Driver) Create(ctx context.Context, e *waitlist.Entry) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}

	row := toRow(e)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		var position int64
		if err := tx.Model(&entryRow{}).Where("seq <= ?", row.Seq).Count(&position).Error; err != nil {
			return err
		}
		if err := tx.Model(&entryRow{}).Where("seq = ?", row.Seq).UpdateColumn("position", position).Error; err != nil {
			return err
		}
		row.Position = &position
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return waitlist.ErrDuplicateEmail
		}
		return err
	}

	e.Position = *row.Position
	return nil
}

// GetByID retrieves an entry by id.
func (d *Driver) GetByID(ctx context.Context, id string) (*waitlist.Entry, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	var row entryRow
	result := db.First(&row, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, waitlist.ErrEntryNotFound
		}
		return nil, result.Error
	}
	return row.toEntry(), nil
}

// ExistsByEmail reports whether the normalized email is registered.
func (d *Driver) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return false, err
	}

	var n int64
	if err := db.Model(&entryRow{}).Where("email = ?", email).Limit(1).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns a page of entries ordered by creation time, newest first.
func (d *Driver) List(ctx context.Context, f waitlist.ListFilter) ([]*waitlist.Entry, int64, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	query := db.Model(&entryRow{})
	if f.Status != "" {
		query = query.Where("status = ?", string(f.Status))
	}
	if f.Search != "" {
		query = query.Where(`LOWER(email) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []entryRow
	if err := query.Order("created_at DESC, seq DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*waitlist.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, rows[i].toEntry())
	}
	return entries, total, nil
}

// CountByStatus returns the number of entries per status.
func (d *Driver) CountByStatus(ctx context.Context) (map[waitlist.Status]int64, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Status string
		N      int64
	}
	if err := db.Model(&entryRow{}).Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[waitlist.Status]int64, len(rows))
	for _, r := range rows {
		counts[waitlist.Status(r.Status)] = r.N
	}
	return counts, nil
}

// CountCreatedSince counts entries created at or after since.
func (d *Driver) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := db.Model(&entryRow{}).Where("created_at >= ?", since.UTC()).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// CreatedTimesSince returns creation times of entries created at or after since.
func (d *Driver) CreatedTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	var times []time.Time
	if err := db.Model(&entryRow{}).Where("created_at >= ?", since.UTC()).Order("created_at").Pluck("created_at", &times).Error; err != nil {
		return nil, err
	}
	return times, nil
}

// UpdateStatus applies the update in a single UPDATE statement.
func (d *Driver) UpdateStatus(ctx context.Context, id string, u waitlist.StatusUpdate) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}

	at := u.At.UTC()
	updates := map[string]any{"updated_at": at}
	if u.Status != nil {
		updates["status"] = string(*u.Status)
		switch *u.Status {
		case waitlist.StatusInvited:
			updates["invited_at"] = gorm.Expr("COALESCE(invited_at, ?)", at)
		case waitlist.StatusActive:
			updates["joined_at"] = gorm.Expr("COALESCE(joined_at, ?)", at)
		}
	}
	if u.Notes != nil {
		updates["notes"] = *u.Notes
	}

	result := db.Model(&entryRow{}).Where("id = ?", id).UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return waitlist.ErrEntryNotFound
	}
	return nil
}

// Ping checks the database connection.
func (d *Driver) Ping(ctx context.Context) error {
	if d.db == nil {
		return store.ErrClosed
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

var _ store.Driver = (*Driver)(nil)
