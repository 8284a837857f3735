package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureMailer struct {
	email string
	token string
	err   error
	calls int
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.calls++
	m.email = email
	m.token = token
	return m.err
}

func newResetService(t *testing.T, f *fixture, mailer Mailer, opts ...ResetOption) *PasswordResetService {
	t.Helper()
	svc, err := NewPasswordResetService(f.store, signingKey(t), mailer, opts...)
	if err != nil {
		t.Fatalf("NewPasswordResetService: %v", err)
	}
	return svc
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	registerLocal(t, f, "alice@example.com", "old-password")
	mailer := &captureMailer{}
	svc := newResetService(t, f, mailer)

	if err := svc.RequestReset(f.ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if mailer.calls != 1 || mailer.email != "alice@example.com" || mailer.token == "" {
		t.Fatalf("unexpected mailer call: %+v", mailer)
	}

	if _, err := svc.Validate(f.ctx, mailer.token); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := svc.Redeem(f.ctx, mailer.token, "new-password"); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	user, err := f.store.Users(f.ctx).FindByEmail(f.ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if !VerifyPassword(user.PasswordHash, "new-password") {
		t.Fatal("expected new password to verify")
	}
	if VerifyPassword(user.PasswordHash, "old-password") {
		t.Fatal("expected old password to stop verifying")
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	mailer := &captureMailer{}
	svc := newResetService(t, f, mailer)

	if err := svc.RequestReset(f.ctx, "nobody@example.com"); err != nil {
		t.Fatalf("expected uniform success for unknown email, got %v", err)
	}
	if mailer.calls != 0 {
		t.Fatalf("expected no email dispatched, got %d calls", mailer.calls)
	}
}

func TestPasswordResetMailerFailureSwallowed(t *testing.T) {
	f := newFixture(t)
	registerLocal(t, f, "alice@example.com", "pw")
	mailer := &captureMailer{err: errors.New("smtp unreachable")}
	svc := newResetService(t, f, mailer)

	if err := svc.RequestReset(f.ctx, "alice@example.com"); err != nil {
		t.Fatalf("expected dispatch failure to be swallowed, got %v", err)
	}
}

func TestPasswordResetTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	registerLocal(t, f, "alice@example.com", "old-password")
	mailer := &captureMailer{}
	svc := newResetService(t, f, mailer)

	if err := svc.RequestReset(f.ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	token := mailer.token
	if err := svc.Redeem(f.ctx, token, "new-password"); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	// The fingerprint no longer matches after the password changed.
	if err := svc.Redeem(f.ctx, token, "another-password"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}
}

func TestPasswordResetTokenExpires(t *testing.T) {
	f := newFixture(t)
	registerLocal(t, f, "alice@example.com", "pw")
	mailer := &captureMailer{}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now
	svc := newResetService(t, f, mailer,
		WithResetValidity(time.Hour),
		WithResetClock(func() time.Time { return current }))

	if err := svc.RequestReset(f.ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	current = now.Add(2 * time.Hour)
	if _, err := svc.Validate(f.ctx, mailer.token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestPasswordResetRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	alice := registerLocal(t, f, "alice@example.com", "pw")
	svc := newResetService(t, f, &captureMailer{})

	// An access JWT signed with the same key must not pass as a reset token.
	tokens := newTokenService(t, f.store)
	payload, err := tokens.SignClaims(f.ctx, alice)
	if err != nil {
		t.Fatalf("SignClaims: %v", err)
	}
	if _, err := svc.Validate(f.ctx, payload.JWT); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("expected ErrMalformedClaims, got %v", err)
	}
}

func TestPasswordResetRedeemValidation(t *testing.T) {
	f := newFixture(t)
	registerLocal(t, f, "alice@example.com", "pw")
	mailer := &captureMailer{}
	svc := newResetService(t, f, mailer)

	if err := svc.RequestReset(f.ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if err := svc.Redeem(f.ctx, mailer.token, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty password, got %v", err)
	}
	if err := svc.Redeem(f.ctx, "garbage-token", "new"); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("expected ErrMalformedClaims for garbage token, got %v", err)
	}
}
