package consent

import (
	"context"
	"database/sql"
)

// PGStore implements Store using PostgreSQL. The table has no update or
// delete path; inserts are the only write.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx,
		`insert into consent_records(id, user_id, type, status, category, message, created_at)
		 values($1,$2,$3,$4,nullif($5,''),nullif($6,''),$7)`,
		rec.ID, rec.UserID, string(rec.Type), string(rec.Status), string(rec.Category), rec.Message, rec.CreatedAt)
	return err
}

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, type, status, coalesce(category, ''), coalesce(message, ''), created_at
		 from consent_records where user_id=$1 order by created_at asc, id asc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Record
	for rows.Next() {
		var (
			rec                Record
			typ, status, categ string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &typ, &status, &categ, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if rec.Type, err = ParseType(typ); err != nil {
			return nil, err
		}
		if rec.Status, err = ParseStatus(status); err != nil {
			return nil, err
		}
		if rec.Category, err = ParseCategory(categ); err != nil {
			return nil, err
		}
		res = append(res, &rec)
	}
	return res, rows.Err()
}
