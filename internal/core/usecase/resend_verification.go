package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pixelmend/pixelmend/internal/core/domain"
	"github.com/pixelmend/pixelmend/internal/core/ports"
)

// ResendVerificationUseCase throttles the user-triggered "resend verification
// email" action with a per-instance last-success timestamp. The clock is
// constructor-injected so tests control time and instances never share state.
type ResendVerificationUseCase struct {
	accounts ports.AccountStore
	mailer   ports.VerificationMailer
	clock    ports.Clock
	cooldown time.Duration

	mu       sync.Mutex
	lastSent time.Time
}

func NewResendVerificationUseCase(
	accounts ports.AccountStore,
	mailer ports.VerificationMailer,
	clock ports.Clock,
	cooldown time.Duration,
) *ResendVerificationUseCase {
	return &ResendVerificationUseCase{
		accounts: accounts,
		mailer:   mailer,
		clock:    clock,
		cooldown: cooldown,
	}
}

// Resend sends the verification email for the active session's address. An
// already-verified account short-circuits to failure without consuming the
// cooldown budget; only a successful send stamps the timestamp.
func (uc *ResendVerificationUseCase) Resend(ctx context.Context, email string) error {
	if email == "" {
		return domain.WrapError(domain.ErrAuthentication, "resend verification", errors.New("no active session"))
	}

	if remaining := uc.RemainingCooldown(); remaining > 0 {
		seconds := int(math.Ceil(remaining.Seconds()))
		return domain.WrapError(domain.ErrRateLimited, "resend verification",
			fmt.Errorf("please wait %d seconds before requesting another email", seconds))
	}

	account, err := uc.accounts.GetOrCreate(ctx, email)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if account.Verified {
		return domain.WrapError(domain.ErrInvalidInput, "resend verification", errors.New("email already verified"))
	}

	if err := uc.mailer.SendVerification(ctx, email); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}

	uc.mu.Lock()
	uc.lastSent = uc.clock.Now()
	uc.mu.Unlock()
	return nil
}

// RemainingCooldown is a pure read exposed for UI countdown display.
func (uc *ResendVerificationUseCase) RemainingCooldown() time.Duration {
	uc.mu.Lock()
	lastSent := uc.lastSent
	uc.mu.Unlock()

	if lastSent.IsZero() {
		return 0
	}
	remaining := uc.cooldown - uc.clock.Now().Sub(lastSent)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetRateLimit clears the stamp. Test hook.
func (uc *ResendVerificationUseCase) ResetRateLimit() {
	uc.mu.Lock()
	uc.lastSent = time.Time{}
	uc.mu.Unlock()
}
