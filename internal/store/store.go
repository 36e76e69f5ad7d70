package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andresmejia3/gatekeeper/internal/types"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection holding enrolled identities.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the identities table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS identities (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			access_level INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// Create enrolls a new identity and returns the id assigned by the database.
func (s *Store) Create(ctx context.Context, name string, accessLevel int) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("identity name must not be empty")
	}

	var id int
	err := s.conn.QueryRow(ctx,
		"INSERT INTO identities (name, access_level) VALUES ($1, $2) RETURNING id",
		name, accessLevel,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Lookup fetches a single identity. The bool is false if no such id exists.
func (s *Store) Lookup(ctx context.Context, id int) (types.Identity, bool, error) {
	var ident types.Identity
	err := s.conn.QueryRow(ctx,
		"SELECT id, name, access_level, created_at FROM identities WHERE id = $1", id,
	).Scan(&ident.ID, &ident.Name, &ident.AccessLevel, &ident.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Identity{}, false, nil
	}
	if err != nil {
		return types.Identity{}, false, err
	}
	return ident, true, nil
}

// List returns every enrolled identity ordered by id.
func (s *Store) List(ctx context.Context) ([]types.Identity, error) {
	rows, err := s.conn.Query(ctx, "SELECT id, name, access_level, created_at FROM identities ORDER BY id")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Identity, error) {
		var ident types.Identity
		err := row.Scan(&ident.ID, &ident.Name, &ident.AccessLevel, &ident.CreatedAt)
		return ident, err
	})
}

// Directory takes a read-only snapshot of all identities for one recognition session.
func (s *Store) Directory(ctx context.Context) (Directory, error) {
	identities, err := s.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}
	return NewDirectory(identities), nil
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `DROP TABLE IF EXISTS identities CASCADE;`)
	return err
}
