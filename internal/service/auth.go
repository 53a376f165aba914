package service

import (
	"bitwise74/kidney-api/internal/apperr"
	"bitwise74/kidney-api/internal/model"
	"bitwise74/kidney-api/internal/store"
	"bitwise74/kidney-api/pkg/security"
	"bitwise74/kidney-api/pkg/validators"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	MsgOTPSent       = "OTP sent to email"
	MsgOTPVerified   = "OTP verified"
	MsgPasswordReset = "Password reset successful"
)

// Session is returned by register and login
type Session struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	User        model.PublicUser `json:"user"`
}

type RegisterInput struct {
	Email    string `json:"email" validate:"loose_email"`
	Password string `json:"password" validate:"password"`
	Name     string `json:"name" validate:"min=2"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"loose_email"`
	Password string `json:"password" validate:"required"`
}

type ResetInput struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
	ResetToken  string `json:"reset_token,omitempty"`
}

// Verification is the outcome of a successful one-time code check.
// ResetToken is only set when reset proofs are required.
type Verification struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

type AuthConfig struct {
	// RequireResetProof makes ResetPassword demand the token handed out by
	// VerifyOneTimeCode
	RequireResetProof bool
	ResetTokenTTL     time.Duration
}

// Auth owns every account related flow
type Auth struct {
	users    *store.UserStore
	hasher   security.Hasher
	tokens   *security.TokenIssuer
	codes    *CodeCache
	notifier Notifier
	cfg      AuthConfig
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuth(users *store.UserStore, h security.Hasher, t *security.TokenIssuer, codes *CodeCache, n Notifier, cfg AuthConfig) *Auth {
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 10 * time.Minute
	}

	return &Auth{
		users:    users,
		hasher:   h,
		tokens:   t,
		codes:    codes,
		notifier: n,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (a *Auth) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := validators.Struct(in); err != nil {
		return nil, validationError(err)
	}

	// Fail fast before paying for a hash
	users, err := a.users.Load(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := users[in.Email]; ok {
		return nil, apperr.Conflict("User already exists")
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password, %w", err)
	}

	user := model.User{
		PasswordHash: hash,
		Name:         in.Name,
		CreatedAt:    a.now().UTC().Format(time.RFC3339),
	}

	err = a.users.Update(ctx, func(doc map[string]model.User) error {
		if _, ok := doc[in.Email]; ok {
			return apperr.Conflict("User already exists")
		}

		doc[in.Email] = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User registered", zap.String("email", in.Email))

	return a.session(in.Email, user)
}

// Login never tells an unknown email apart from a wrong password, not even
// by timing
func (a *Auth) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := validators.Struct(in); err != nil {
		return nil, validationError(err)
	}

	users, err := a.users.Load(ctx)
	if err != nil {
		return nil, err
	}

	user, ok := users[in.Email]
	if !ok {
		a.dummyCompare(in.Password)
		return nil, apperr.Auth("Invalid credentials")
	}

	match, err := a.hasher.Compare(user.PasswordHash, in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password, %w", err)
	}

	if !match {
		return nil, apperr.Auth("Invalid credentials")
	}

	return a.session(in.Email, user)
}

// RequestPasswordReset issues a new one-time code for email and hands it to
// the notifier
func (a *Auth) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	users, err := a.users.Load(ctx)
	if err != nil {
		return "", err
	}

	if _, ok := users[email]; !ok {
		return "", apperr.NotFound("User not found")
	}

	code, err := a.codes.Issue(email)
	if err != nil {
		return "", err
	}

	if err := a.notifier.SendCode(ctx, email, code); err != nil {
		a.codes.Revoke(email, code)
		return "", fmt.Errorf("failed to deliver one-time code, %w", err)
	}

	return MsgOTPSent, nil
}

func (a *Auth) VerifyOneTimeCode(email, code string) (*Verification, error) {
	if !a.codes.Consume(email, code) {
		return nil, apperr.Validation("Invalid OTP")
	}

	v := &Verification{Message: MsgOTPVerified}

	if a.cfg.RequireResetProof {
		t, err := a.tokens.IssueFor(email, security.PurposePasswordReset, a.cfg.ResetTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to issue reset token, %w", err)
		}

		v.ResetToken = t
	}

	return v, nil
}

// ResetPassword overwrites the password of an existing account. Unless
// reset proofs are required nothing ties this call to a verified code.
func (a *Auth) ResetPassword(ctx context.Context, in ResetInput) (string, error) {
	users, err := a.users.Load(ctx)
	if err != nil {
		return "", err
	}

	if _, ok := users[in.Email]; !ok {
		return "", apperr.NotFound("User not found")
	}

	if err := validators.PasswordValidator(in.NewPassword); err != nil {
		return "", apperr.Validation("invalid fields: new_password")
	}

	if a.cfg.RequireResetProof {
		sub, err := a.tokens.VerifyFor(in.ResetToken, security.PurposePasswordReset)
		if err != nil || sub != in.Email {
			return "", apperr.Auth("Invalid reset token")
		}
	}

	hash, err := a.hasher.Hash(in.NewPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password, %w", err)
	}

	err = a.users.Update(ctx, func(doc map[string]model.User) error {
		u, ok := doc[in.Email]
		if !ok {
			return apperr.NotFound("User not found")
		}

		u.PasswordHash = hash
		doc[in.Email] = u
		return nil
	})
	if err != nil {
		return "", err
	}

	zap.L().Info("Password reset", zap.String("email", in.Email))

	return MsgPasswordReset, nil
}

func (a *Auth) IssueToken(email string) (string, error) {
	return a.tokens.Issue(email)
}

// VerifyToken returns the email a session token was issued for. Every
// failure looks the same to the caller.
func (a *Auth) VerifyToken(token string) (string, error) {
	email, err := a.tokens.Verify(token)
	if err != nil {
		return "", apperr.Auth("Invalid token")
	}

	return email, nil
}

func (a *Auth) session(email string, u model.User) (*Session, error) {
	token, err := a.tokens.Issue(email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token, %w", err)
	}

	return &Session{
		AccessToken: token,
		TokenType:   "bearer",
		User:        u.Public(email),
	}, nil
}

// dummyCompare spends as long as a real password check
func (a *Auth) dummyCompare(password string) {
	a.dummyOnce.Do(func() {
		h, err := a.hasher.Hash("not-a-real-password")
		if err != nil {
			zap.L().Warn("Failed to build dummy hash", zap.Error(err))
			return
		}

		a.dummyHash = h
	})

	if a.dummyHash != "" {
		_, _ = a.hasher.Compare(a.dummyHash, password)
	}
}

func validationError(err error) error {
	var fe *validators.FieldsError
	if errors.As(err, &fe) {
		return apperr.Validation(fe.Error())
	}

	return apperr.Validation("Invalid request body")
}
