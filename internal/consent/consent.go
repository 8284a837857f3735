// Package consent keeps an append-only log of user consent decisions.
// Records are never updated or deleted; the current state of a consent is
// the most recent record for its (type, category) pair.
package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strainforge.org/internal/ids"
)

// ErrInvalidRecord rejects malformed consent submissions.
var ErrInvalidRecord = errors.New("consent: invalid record")

// Type is the consent regime a record belongs to.
type Type string

const (
	TypeGDPR   Type = "gdpr"
	TypeCookie Type = "cookie"
)

// ParseType validates a consent type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeGDPR, TypeCookie:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, s)
	}
}

// Status is the decision recorded.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a consent status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAccepted, StatusRejected:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, s)
	}
}

// Category refines cookie consent. GDPR records carry no category.
type Category string

const (
	CategoryStrictlyNecessary Category = "strictly_necessary"
	CategoryPreferences       Category = "preferences"
	CategoryStatistics        Category = "statistics"
	CategoryMarketing         Category = "marketing"
)

// ParseCategory validates a consent category string. The empty string is
// valid and denotes an uncategorized record.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case "", CategoryStrictlyNecessary, CategoryPreferences, CategoryStatistics, CategoryMarketing:
		return Category(s), nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidRecord, s)
	}
}

// Record is one consent decision.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`
	Category  Category  `json:"category,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists consent records. Append is the only write.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	ListByUser(ctx context.Context, userID string) ([]*Record, error)
}

// Service validates and records consent decisions.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a consent service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Record validates the submission, stamps identity and time, and appends it.
func (s *Service) Record(ctx context.Context, rec *Record) error {
	if rec.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	var err error
	if rec.Type, err = ParseType(string(rec.Type)); err != nil {
		return err
	}
	if rec.Status, err = ParseStatus(string(rec.Status)); err != nil {
		return err
	}
	if rec.Category, err = ParseCategory(string(rec.Category)); err != nil {
		return err
	}
	rec.ID = ids.New()
	rec.CreatedAt = s.now().UTC()
	return s.store.Append(ctx, rec)
}

// History returns every record for the user, oldest first.
func (s *Service) History(ctx context.Context, userID string) ([]*Record, error) {
	return s.store.ListByUser(ctx, userID)
}

// Current reduces the log to the most recent decision per (type, category)
// pair, the state a frontend needs to decide which banners to show.
func (s *Service) Current(ctx context.Context, userID string) ([]*Record, error) {
	history, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	type key struct {
		t Type
		c Category
	}
	latest := make(map[key]*Record)
	var order []key
	for _, rec := range history {
		k := key{rec.Type, rec.Category}
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = rec
	}
	res := make([]*Record, 0, len(order))
	for _, k := range order {
		res = append(res, latest[k])
	}
	return res, nil
}
