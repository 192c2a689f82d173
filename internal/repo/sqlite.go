package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteSchema — таблица nuts в диалекте SQLite.
const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS nuts (
		namespace  TEXT    NOT NULL,
		name       TEXT    NOT NULL,
		type       TEXT    NOT NULL,
		content    BLOB    NOT NULL,
		version    TEXT    NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (namespace, name)
	)
`

// OpenSQLite открывает файл базы SQLite и создаёт таблицу nuts.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite не допускает параллельной записи
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// SQLiteNutRepo — репозиторий ресурсов в SQLite.
// Повторяет NutRepo для однофайловых установок без PostgreSQL.
type SQLiteNutRepo struct {
	db *sql.DB
}

// NewSQLiteNutRepo создаёт репозиторий над открытой базой.
func NewSQLiteNutRepo(db *sql.DB) *SQLiteNutRepo {
	return &SQLiteNutRepo{db: db}
}

// Names возвращает имена ресурсов namespace по алфавиту.
func (r *SQLiteNutRepo) Names(ctx context.Context, namespace string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM nuts WHERE namespace = ? ORDER BY name`, namespace)
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
func (r *SQLiteNutRepo) Get(ctx context.Context, namespace, name string) (*NutRecord, error) {
	query := `
		SELECT namespace, name, type, content, version, updated_at
		FROM nuts
		WHERE namespace = ? AND name = ?
	`
	var (
		rec     NutRecord
		updated int64
	)
	err := r.db.QueryRowContext(ctx, query, namespace, name).Scan(
		&rec.Namespace,
		&rec.Name,
		&rec.Type,
		&rec.Content,
		&rec.Version,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get nut: %w", err)
	}
	rec.UpdatedAt = time.Unix(0, updated)
	return &rec, nil
}

// Upsert сохраняет ресурс, заменяя существующий.
func (r *SQLiteNutRepo) Upsert(ctx context.Context, rec *NutRecord) error {
	query := `
		INSERT INTO nuts (namespace, name, type, content, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, name) DO UPDATE
		SET type = excluded.type,
		    content = excluded.content,
		    version = excluded.version,
		    updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.Namespace,
		rec.Name,
		rec.Type,
		rec.Content,
		rec.Version,
		time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert nut: %w", err)
	}
	return nil
}

// Delete удаляет ресурс.
func (r *SQLiteNutRepo) Delete(ctx context.Context, namespace, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM nuts WHERE namespace = ? AND name = ?`, namespace, name)
	if err != nil {
		return fmt.Errorf("delete nut: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete nut: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Versions возвращает версии ресурсов namespace (имя → версия).
func (r *SQLiteNutRepo) Versions(ctx context.Context, namespace string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, version FROM nuts WHERE namespace = ?`, namespace)
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
