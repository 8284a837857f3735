package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewPGStore(db), mock
}

func TestPGAppendNullsEmptyOptionals(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectExec("insert into consent_records").
		WithArgs("c1", "u1", "gdpr", "accepted", "", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Append(ctx, &Record{
		ID: "c1", UserID: "u1", Type: TypeGDPR, Status: StatusAccepted, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestPGListByUser(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "status", "coalesce", "coalesce", "created_at"}).
		AddRow("c1", "u1", "cookie", "rejected", "marketing", "", now)
	mock.ExpectQuery("select (.+) from consent_records where user_id=").
		WithArgs("u1").
		WillReturnRows(rows)

	records, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(records) != 1 || records[0].Category != CategoryMarketing {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestPGListRejectsUnknownStoredValues(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "status", "coalesce", "coalesce", "created_at"}).
		AddRow("c1", "u1", "ccpa", "accepted", "", "", time.Now())
	mock.ExpectQuery("select (.+) from consent_records where user_id=").
		WithArgs("u1").
		WillReturnRows(rows)

	_, err := store.ListByUser(ctx, "u1")
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}
