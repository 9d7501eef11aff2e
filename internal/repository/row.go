package repository

import "time"

type journalRow struct {
	Source     string    `db:"source"`
	ReceivedAt time.Time `db:"received_at"`
	Payload    string    `db:"payload"`
}
