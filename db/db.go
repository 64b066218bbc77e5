package db

import (
	"bytes"
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

var (
	ErrNotFound = errors.New("entity not found")
)

type DB struct {
	db      *bun.DB
	timeout time.Duration
}

const defaultTimeout = time.Second * 10

func New(dsn string) *DB {
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())
	return &DB{db: db, timeout: defaultTimeout}
}

func (d *DB) SetTimeout(duration time.Duration) {
	d.timeout = duration
}

func (d *DB) EnableDebug() {
	d.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Init creates the records table when it does not exist yet.
func (d *DB) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during creating records table")
	}
	return nil
}

func (d *DB) GetRecord(ctx context.Context, key string) (Record, error) {
	r := Record{Key: key}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&r).WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "error during querying record %v", key)
	}
	return r, nil
}

// UpdateRecord runs fn on the row for key while holding a row lock in a
// transaction. The row is created first so that concurrent writers on a new
// key still serialise on it.
func (d *DB) UpdateRecord(ctx context.Context, key string, fn func(data []byte) ([]byte, error)) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&Record{Key: key, UpdatedAt: time.Now()}).
			On("CONFLICT (key) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return errors.Wrapf(err, "error during creating record %v", key)
		}
		r := Record{Key: key}
		err = tx.NewSelect().Model(&r).WherePK().For("UPDATE").Scan(ctx)
		if err != nil {
			return errors.Wrapf(err, "error during locking record %v", key)
		}
		updated, err := fn(r.Data)
		if err != nil {
			return err
		}
		if bytes.Equal(r.Data, updated) {
			return nil
		}
		r.Data = updated
		r.UpdatedAt = time.Now()
		_, err = tx.NewUpdate().Model(&r).Column("data", "updated_at").WherePK().Exec(ctx)
		if err != nil {
			return errors.Wrapf(err, "error during updating record %v", key)
		}
		return nil
	})
}

// KeyRecord binds a key so that one table row can be used as a
// storage record.
type KeyRecord struct {
	db  *DB
	key string
}

func (d *DB) Record(key string) *KeyRecord {
	return &KeyRecord{db: d, key: key}
}

func (k *KeyRecord) Load(ctx context.Context) ([]byte, error) {
	r, err := k.db.GetRecord(ctx, k.key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(r.Data) == 0 {
		return nil, nil
	}
	return r.Data, nil
}

func (k *KeyRecord) Update(ctx context.Context, fn func(data []byte) ([]byte, error)) error {
	return k.db.UpdateRecord(ctx, k.key, func(data []byte) ([]byte, error) {
		if len(data) == 0 {
			data = nil
		}
		return fn(data)
	})
}
