package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
)

type accountStoreFake struct {
	account *domain.Account
	err     error
}

func (f *accountStoreFake) GetOrCreate(_ context.Context, email string) (*domain.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.account != nil {
		return f.account, nil
	}
	return &domain.Account{Email: email}, nil
}

type mailerFake struct {
	sent []string
	err  error
}

func (f *mailerFake) SendVerification(_ context.Context, email string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type clockFake struct {
	now time.Time
}

func (f *clockFake) Now() time.Time { return f.now }

func (f *clockFake) advance(d time.Duration) { f.now = f.now.Add(d) }

func newResendFixture(cooldown time.Duration) (*ResendVerificationUseCase, *mailerFake, *clockFake) {
	mailer := &mailerFake{}
	clock := &clockFake{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	uc := NewResendVerificationUseCase(&accountStoreFake{}, mailer, clock, cooldown)
	return uc, mailer, clock
}

func TestResendSucceedsThenHitsCooldown(t *testing.T) {
	uc, mailer, clock := newResendFixture(60 * time.Second)

	if err := uc.Resend(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("first resend error = %v", err)
	}

	clock.advance(10 * time.Second)
	err := uc.Resend(context.Background(), "user@example.com")
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if !strings.Contains(err.Error(), "50 seconds") {
		t.Fatalf("expected remaining seconds in message, got %q", err.Error())
	}

	clock.advance(51 * time.Second)
	if err := uc.Resend(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("resend after cooldown error = %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 emails sent, got %d", len(mailer.sent))
	}
}

func TestResendFailsFastWithoutSession(t *testing.T) {
	uc, mailer, _ := newResendFixture(time.Minute)

	err := uc.Resend(context.Background(), "")
	if !domain.IsKind(err, domain.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email sent")
	}
}

func TestResendAlreadyVerifiedDoesNotStartCooldown(t *testing.T) {
	mailer := &mailerFake{}
	clock := &clockFake{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	accounts := &accountStoreFake{account: &domain.Account{Email: "user@example.com", Verified: true}}
	uc := NewResendVerificationUseCase(accounts, mailer, clock, time.Minute)

	err := uc.Resend(context.Background(), "user@example.com")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for verified account, got %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email sent")
	}
	if uc.RemainingCooldown() != 0 {
		t.Fatalf("verified short-circuit must not stamp the cooldown")
	}
}

func TestRemainingCooldownCountsDown(t *testing.T) {
	uc, _, clock := newResendFixture(time.Minute)

	if uc.RemainingCooldown() != 0 {
		t.Fatalf("expected zero cooldown before first send")
	}
	if err := uc.Resend(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("resend error = %v", err)
	}

	clock.advance(15 * time.Second)
	if got := uc.RemainingCooldown(); got != 45*time.Second {
		t.Fatalf("expected 45s remaining, got %s", got)
	}

	clock.advance(time.Minute)
	if got := uc.RemainingCooldown(); got != 0 {
		t.Fatalf("expected cooldown elapsed, got %s", got)
	}
}

func TestResetRateLimitClearsStamp(t *testing.T) {
	uc, _, _ := newResendFixture(time.Hour)

	if err := uc.Resend(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("resend error = %v", err)
	}
	uc.ResetRateLimit()
	if err := uc.Resend(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("expected resend after reset to pass, got %v", err)
	}
}

func TestResendFailedSendDoesNotStamp(t *testing.T) {
	mailer := &mailerFake{err: domain.WrapError(domain.ErrTemporary, "smtp", context.DeadlineExceeded)}
	clock := &clockFake{now: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	uc := NewResendVerificationUseCase(&accountStoreFake{}, mailer, clock, time.Minute)

	if err := uc.Resend(context.Background(), "user@example.com"); err == nil {
		t.Fatalf("expected send failure")
	}
	if uc.RemainingCooldown() != 0 {
		t.Fatalf("failed send must not consume the cooldown budget")
	}
}
