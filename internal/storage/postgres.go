package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresRepository reads the order and notification documents the backend
// keeps, to seed clients that just joined a channel.
type PostgresRepository struct {
	DB *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{DB: db}
}

func (r *PostgresRepository) ActiveOrders(hotelKey string) ([]json.RawMessage, error) {
	return r.documents(`
		SELECT doc FROM orders
		WHERE hotel_key = $1
		  AND NOT order_accepted AND NOT order_cancelled AND NOT order_delivered
		ORDER BY created_at
	`, hotelKey)
}

func (r *PostgresRepository) ConfirmedOrders(hotelKey string) ([]json.RawMessage, error) {
	return r.documents(`
		SELECT doc FROM orders
		WHERE hotel_key = $1
		  AND order_accepted AND NOT order_cancelled AND NOT order_delivered
		ORDER BY created_at
	`, hotelKey)
}

func (r *PostgresRepository) Notifications(hotelKey, staffUserID string) ([]json.RawMessage, error) {
	return r.documents(`
		SELECT doc FROM notifications
		WHERE hotel_key = $1 AND (staff_user_id = $2 OR staff_user_id IS NULL)
		ORDER BY created_at DESC
		LIMIT 100
	`, hotelKey, staffUserID)
}

func (r *PostgresRepository) documents(query string, args ...any) ([]json.RawMessage, error) {
	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []json.RawMessage{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			continue
		}
		docs = append(docs, json.RawMessage(doc))
	}
	return docs, rows.Err()
}

func (r *PostgresRepository) EnsureSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			hotel_key TEXT NOT NULL,
			doc JSONB NOT NULL,
			order_accepted BOOLEAN NOT NULL DEFAULT FALSE,
			order_cancelled BOOLEAN NOT NULL DEFAULT FALSE,
			order_delivered BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			hotel_key TEXT NOT NULL,
			staff_user_id TEXT,
			doc JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		"CREATE INDEX IF NOT EXISTS orders_hotel_key_idx ON orders (hotel_key, created_at)",
	}
	for _, stmt := range statements {
		if _, err := r.DB.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema `%s`: %w", stmt, err)
		}
	}
	return nil
}
