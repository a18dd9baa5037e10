package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/ports"
)

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultAccessTTL    = 5 * time.Minute
	DefaultRefreshTTL   = 5 * 24 * time.Hour
)

// AuthService proves which Ethereum address a caller controls
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	eventPub  ports.EventPublisher
	logger    watermill.LoggerAdapter
	clock     core.Clock

	challengeTTL time.Duration
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	eventPub ports.EventPublisher,
	logger watermill.LoggerAdapter,
) *AuthService {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &AuthService{
		tokenizer:    tokenizer,
		store:        store,
		eventPub:     eventPub,
		logger:       logger.With(watermill.LogFields{"component": "auth"}),
		clock:        core.SystemClock{},
		challengeTTL: DefaultChallengeTTL,
		accessTTL:    DefaultAccessTTL,
		refreshTTL:   DefaultRefreshTTL,
	}
}

// AccessTTL is the lifetime of issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// CreateChallenge generates a new authentication challenge for address
func (s *AuthService) CreateChallenge(address common.Address) (string, error) {
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := s.clock.Now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   address,
		Nonce:     hex.EncodeToString(nonceBytes),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return "", fmt.Errorf("failed to create token: %w", err)
	}

	return token, nil
}

// Login exchanges a signed challenge for access and refresh tokens. A
// challenge can be used once.
func (s *AuthService) Login(ctx context.Context, challengeToken, signature string, address common.Address) (string, string, error) {
	challenge, err := s.tokenizer.TokenToChallenge(challengeToken)
	if err != nil {
		return "", "", fmt.Errorf("invalid challenge token: %w", err)
	}

	if err := s.tokenizer.VerifySignature(challenge, signature, address); err != nil {
		return "", "", fmt.Errorf("signature verification failed: %w", err)
	}

	consumed, err := s.store.ConsumeToken(ctx, challenge.ID, time.Until(challenge.ExpiresAt)+time.Minute)
	if err != nil {
		return "", "", fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		return "", "", core.ErrInvalidChallenge
	}

	access, refresh, err := s.issue(address)
	if err != nil {
		return "", "", err
	}

	s.logger.Info("Caller logged in", watermill.LogFields{"address": address.Hex()})
	return access, refresh, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (string, string, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	if s.clock.Now().After(session.RefreshExpiry) {
		return "", "", core.ErrTokenExpired
	}

	consumed, err := s.store.ConsumeToken(ctx, session.RefreshID, time.Until(session.RefreshExpiry))
	if err != nil {
		return "", "", fmt.Errorf("failed to invalidate old token: %w", err)
	}
	if !consumed {
		return "", "", core.ErrTokenInvalidated
	}

	return s.issue(session.Address)
}

// Logout invalidates a refresh token and every access token paired with it
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, time.Until(session.RefreshExpiry)); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if s.eventPub == nil {
		return nil
	}

	// The token is already invalidated; a lost notification is not fatal.
	if err := s.eventPub.PublishLogout(ctx, session.Address.Hex(), session.RefreshID); err != nil {
		s.logger.Error("Failed to publish logout event", err, watermill.LogFields{"address": session.Address.Hex()})
	}

	return nil
}

// ValidateAccessToken returns the session of a live access token
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if s.clock.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func (s *AuthService) issue(address common.Address) (string, string, error) {
	now := s.clock.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return "", "", fmt.Errorf("failed to create refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}
