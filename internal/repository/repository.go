package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/cenfotec-cedula5/energy-monitor/internal/domain"
)

// Repos is the append-only journal of received readings. Nothing reads it
// back into the running service.
type Repos struct {
	db sqlx.ExtContext
}

func New(db sqlx.ExtContext) *Repos { return &Repos{db: db} }

const insertReading = `INSERT INTO readings(source, received_at, payload) VALUES (:source, :received_at, :payload)`

func (r *Repos) InsertReading(ctx context.Context, rd domain.Reading) error {
	_, err := sqlx.NamedExecContext(ctx, r.db, insertReading, journalRow{
		Source:     rd.Source,
		ReceivedAt: rd.ReceivedAt,
		Payload:    string(rd.Payload),
	})
	return err
}

func (r *Repos) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, r.db, &n, `SELECT count(*) FROM readings`)
	return n, err
}
