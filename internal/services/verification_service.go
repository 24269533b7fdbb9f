package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/cache"
	"github.com/rs/zerolog"
)

const (
	verificationKeyPrefix = "verification:"
	attemptsKeyPrefix     = "verification:attempts:"
	maxConfirmAttempts    = 5
)

type verifiedMarker interface {
	MarkVerified(ctx context.Context, id string) error
}

// CodeSender delivers a verification code to its participant.
type CodeSender interface {
	SendCode(ctx context.Context, participantID string, code string) error
}

// LogCodeSender writes codes to the log. It stands in for a mail gateway.
type LogCodeSender struct {
	Log zerolog.Logger
}

func (s LogCodeSender) SendCode(_ context.Context, participantID string, code string) error {
	s.Log.Info().Str("participant_id", participantID).Str("code", code).Msg("verification code issued")
	return nil
}

type VerificationService struct {
	cache        cache.Cache
	participants verifiedMarker
	sender       CodeSender
	ttl          time.Duration
	newCode      func() (string, error)
}

func NewVerificationService(c cache.Cache, participants verifiedMarker, sender CodeSender, ttl time.Duration) *VerificationService {
	return &VerificationService{
		cache:        c,
		participants: participants,
		sender:       sender,
		ttl:          ttl,
		newCode:      sixDigitCode,
	}
}

// Issue replaces any outstanding code for participantID and delivers a new one.
func (s *VerificationService) Issue(ctx context.Context, participantID string) error {
	if s.cache == nil {
		return ErrCacheUnavailable
	}
	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}
	if err := s.cache.Set(ctx, verificationKeyPrefix+participantID, code, s.ttl); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}
	if _, err := s.cache.Del(ctx, attemptsKeyPrefix+participantID); err != nil {
		return fmt.Errorf("reset verification attempts: %w", err)
	}
	return s.sender.SendCode(ctx, participantID, code)
}

// Confirm checks code and marks the participant verified. A code is
// consumed by the first successful confirmation and dropped after
// maxConfirmAttempts wrong guesses.
func (s *VerificationService) Confirm(ctx context.Context, participantID string, code string) error {
	if s.cache == nil {
		return ErrCacheUnavailable
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidInput
	}

	key := verificationKeyPrefix + participantID
	stored, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrMiss) {
		return ErrVerificationExpired
	}
	if err != nil {
		return fmt.Errorf("load verification code: %w", err)
	}
	attemptsKey := attemptsKeyPrefix + participantID
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		attempts, err := s.cache.Incr(ctx, attemptsKey, s.ttl)
		if err != nil {
			return fmt.Errorf("count verification attempts: %w", err)
		}
		if attempts >= maxConfirmAttempts {
			if _, err := s.cache.Del(ctx, key, attemptsKey); err != nil {
				return fmt.Errorf("drop verification code: %w", err)
			}
			return ErrVerificationExpired
		}
		return ErrVerificationMismatch
	}

	if err := s.participants.MarkVerified(ctx, participantID); err != nil {
		return err
	}
	if _, err := s.cache.Del(ctx, key, attemptsKey); err != nil {
		return fmt.Errorf("consume verification code: %w", err)
	}
	return nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
