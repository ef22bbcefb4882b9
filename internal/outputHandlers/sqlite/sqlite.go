package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/AlfredBerg/rootdata-sync/internal/project"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteOutput is a local stand-in for the hosted projects table.
type SqliteOutput struct {
	Database string
	db       *sql.DB

	dbLock sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id integer not null primary key,
	project_name text not null,
	project_logo text,
	project_link text,
	project_round text,
	project_amount text,
	project_valuation text,
	project_date text,
	investors text not null,
	created_at timestamp not null default current_timestamp
);
CREATE INDEX IF NOT EXISTS projects_name ON projects(project_name);`

func (o *SqliteOutput) Init() error {
	if o.Database == "" {
		return errors.New("sqlite database file not set")
	}

	db, err := sql.Open("sqlite3", o.Database)
	if err != nil {
		return err
	}
	// The go sqlite driver does not allow for concurrent writes
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create projects table: %w", err)
	}
	o.db = db
	return nil
}

func (o *SqliteOutput) Cleanup() error {
	if o.db == nil {
		return nil
	}
	return o.db.Close()
}

func (o *SqliteOutput) ExistingNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := o.db.QueryContext(ctx, "SELECT project_name FROM projects;")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = struct{}{}
	}
	return names, rows.Err()
}

// CreateProjects inserts records in one transaction, so a batch lands whole or not at all.
func (o *SqliteOutput) CreateProjects(ctx context.Context, records []project.Record) error {
	o.dbLock.Lock()
	defer o.dbLock.Unlock()

	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insert := `INSERT into projects(project_name, project_logo, project_link, project_round,
		project_amount, project_valuation, project_date, investors) values(?, ?, ?, ?, ?, ?, ?, ?);`
	for _, r := range records {
		investors, err := json.Marshal(r.Investors)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, insert, r.Name, r.Logo, r.Link, r.Round,
			r.Amount, r.Valuation, r.Date, string(investors))
		if err != nil {
			return fmt.Errorf("failed to insert project %q: %w", r.Name, err)
		}
	}
	return tx.Commit()
}

// Projects reads back stored rows in insertion order.
func (o *SqliteOutput) Projects(ctx context.Context) ([]project.Record, error) {
	rows, err := o.db.QueryContext(ctx, `SELECT project_name, project_logo, project_link, project_round,
		project_amount, project_valuation, project_date, investors FROM projects ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []project.Record
	for rows.Next() {
		var r project.Record
		var investors string
		if err := rows.Scan(&r.Name, &r.Logo, &r.Link, &r.Round, &r.Amount, &r.Valuation, &r.Date, &investors); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(investors), &r.Investors); err != nil {
			return nil, fmt.Errorf("decode investors of %q: %w", r.Name, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
