package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taotie/internal/db/crypto"
	"taotie/internal/domain"
)

const datasetColumns = `name, kind, source, source_encrypted, extension, compression, source_table, created_at, updated_at`

// DatasetRepo implements domain.DatasetRepository on the SQLite registry.
// Postgres DSNs are sealed with enc when one is configured.
type DatasetRepo struct {
	db  *sql.DB
	enc *crypto.Encryptor
}

var _ domain.DatasetRepository = (*DatasetRepo)(nil)

// NewDatasetRepo creates a DatasetRepo. enc may be nil.
func NewDatasetRepo(db *sql.DB, enc *crypto.Encryptor) *DatasetRepo {
	return &DatasetRepo{db: db, enc: enc}
}

// Upsert inserts ds or replaces the registration of the same name.
// created_at survives replacement.
func (r *DatasetRepo) Upsert(ctx context.Context, ds *domain.Dataset) (*domain.Dataset, error) {
	source, sealed, err := r.sealSource(ds)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO datasets (name, kind, source, source_encrypted, extension, compression, source_table)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			kind = excluded.kind,
			source = excluded.source,
			source_encrypted = excluded.source_encrypted,
			extension = excluded.extension,
			compression = excluded.compression,
			source_table = excluded.source_table,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		RETURNING `+datasetColumns,
		ds.Name, string(ds.Kind), source, boolToInt(sealed),
		ds.Extension, string(ds.Compression), ds.Table,
	)
	out, err := r.scan(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return out, nil
}

// Get returns the registration named name.
func (r *DatasetRepo) Get(ctx context.Context, name string) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE name = ?`, name)
	ds, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("dataset %q is not registered", name)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// List returns every registration ordered by name.
func (r *DatasetRepo) List(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+datasetColumns+` FROM datasets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Dataset
	for rows.Next() {
		ds, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ds)
	}
	return out, rows.Err()
}

// Delete removes the registration named name.
func (r *DatasetRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound("dataset %q is not registered", name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *DatasetRepo) scan(s scanner) (*domain.Dataset, error) {
	var (
		ds                   domain.Dataset
		kind, compression    string
		sealed               int64
		createdAt, updatedAt string
	)
	if err := s.Scan(&ds.Name, &kind, &ds.Source, &sealed, &ds.Extension,
		&compression, &ds.Table, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	ds.Kind = domain.ConnKind(kind)
	ds.Compression = domain.Compression(compression)
	ds.CreatedAt = parseTime(createdAt)
	ds.UpdatedAt = parseTime(updatedAt)

	if sealed != 0 {
		if r.enc == nil {
			return nil, fmt.Errorf("dataset %q: source is encrypted and no encryption key is configured", ds.Name)
		}
		plain, err := r.enc.Open(ds.Name, ds.Source)
		if err != nil {
			return nil, fmt.Errorf("dataset %q: %w", ds.Name, err)
		}
		ds.Source = plain
	}
	return &ds, nil
}

// sealSource encrypts postgres DSNs when an encryptor is configured.
func (r *DatasetRepo) sealSource(ds *domain.Dataset) (string, bool, error) {
	if r.enc == nil || ds.Kind != domain.ConnPostgres {
		return ds.Source, false, nil
	}
	sealed, err := r.enc.Seal(ds.Name, ds.Source)
	if err != nil {
		return "", false, fmt.Errorf("seal source of %q: %w", ds.Name, err)
	}
	return sealed, true, nil
}
