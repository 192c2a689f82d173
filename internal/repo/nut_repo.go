package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema создаёт таблицу ресурсов, если её нет.
const schema = `
	CREATE TABLE IF NOT EXISTS nuts (
		namespace  TEXT        NOT NULL,
		name       TEXT        NOT NULL,
		type       TEXT        NOT NULL,
		content    BYTEA       NOT NULL,
		version    TEXT        NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (namespace, name)
	)
`

// NutRecord — строка таблицы nuts.
type NutRecord struct {
	Namespace string
	Name      string
	Type      string
	Content   []byte
	Version   string
	UpdatedAt time.Time
}

// NutRepo — репозиторий ресурсов в PostgreSQL.
//
// Ресурсы группируются по namespace: каждый postgres store
// работает со своим namespace.
type NutRepo struct {
	pool *pgxpool.Pool
}

// NewNutRepo создаёт новый NutRepo.
func NewNutRepo(pool *pgxpool.Pool) *NutRepo {
	return &NutRepo{pool: pool}
}

// EnsureSchema создаёт таблицу nuts.
func (r *NutRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Names возвращает имена ресурсов namespace по алфавиту.
func (r *NutRepo) Names(ctx context.Context, namespace string) ([]string, error) {
	query := `
		SELECT name
		FROM nuts
		WHERE namespace = $1
		ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query, namespace)
	if err != nil {
		return nil, fmt.Errorf("list nuts: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan nut name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Get возвращает ресурс по имени.
func (r *NutRepo) Get(ctx context.Context, namespace, name string) (*NutRecord, error) {
	query := `
		SELECT namespace, name, type, content, version, updated_at
		FROM nuts
		WHERE namespace = $1 AND name = $2
	`
	var rec NutRecord
	err := r.pool.QueryRow(ctx, query, namespace, name).Scan(
		&rec.Namespace,
		&rec.Name,
		&rec.Type,
		&rec.Content,
		&rec.Version,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get nut: %w", err)
	}
	return &rec, nil
}

// Upsert сохраняет ресурс, заменяя существующий.
func (r *NutRepo) Upsert(ctx context.Context, rec *NutRecord) error {
	query := `
		INSERT INTO nuts (namespace, name, type, content, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (namespace, name) DO UPDATE
		SET type = EXCLUDED.type,
		    content = EXCLUDED.content,
		    version = EXCLUDED.version,
		    updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query,
		rec.Namespace,
		rec.Name,
		rec.Type,
		rec.Content,
		rec.Version,
	)
	if err != nil {
		return fmt.Errorf("upsert nut: %w", err)
	}
	return nil
}

// Delete удаляет ресурс.
func (r *NutRepo) Delete(ctx context.Context, namespace, name string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM nuts WHERE namespace = $1 AND name = $2`, namespace, name)
	if err != nil {
		return fmt.Errorf("delete nut: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Versions возвращает версии ресурсов namespace (имя → версия).
// Используется для опроса изменений.
func (r *NutRepo) Versions(ctx context.Context, namespace string) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, version FROM nuts WHERE namespace = $1`, namespace)
	if err != nil {
		return nil, fmt.Errorf("list nut versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[string]string)
	for rows.Next() {
		var name, version string
		if err := rows.Scan(&name, &version); err != nil {
			return nil, fmt.Errorf("scan nut version: %w", err)
		}
		versions[name] = version
	}
	return versions, rows.Err()
}
