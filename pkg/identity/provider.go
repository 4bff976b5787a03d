// Package identity plays the external identity-provider role: it issues
// bearer tokens on signup/login, validates them back into a caller
// identity, and owns credential rotation and account deletion. Accounts
// live under the account:* keyspace, keyed by lowercased email.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"courier/pkg/logger"
	"courier/pkg/store"
)

var (
	// ErrExists is returned by Signup for an already-registered email.
	ErrExists = errors.New("account already exists")
	// ErrInvalidCredentials covers bad email/password pairs and is also
	// returned for unknown emails so login does not leak registration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound marks a missing account.
	ErrNotFound = errors.New("account not found")
	// ErrBadToken marks an unparseable, expired or mis-signed token.
	ErrBadToken = errors.New("invalid token")
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	ID    string
	Email string
}

// AccountMeta is audit metadata joined into admin user listings.
type AccountMeta struct {
	CreatedAt    int64 `json:"createdAt"`
	LastSignInAt int64 `json:"lastSignInAt,omitempty"`
}

// account is the stored credential record. The password hash never leaves
// this package.
type account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
	LastSignInAt int64  `json:"lastSignInAt,omitempty"`
}

// resetRecord is stored under reset:<token> while a password reset is
// pending.
type resetRecord struct {
	Email     string `json:"email"`
	ExpiresAt int64  `json:"expiresAt"`
}

const resetTTL = time.Hour

// Provider issues and validates bearer tokens against stored accounts.
type Provider struct {
	secret []byte
	ttl    time.Duration
	mailer *Mailer
}

// New constructs a Provider. mailer may be nil, in which case reset tokens
// are logged instead of mailed.
func New(secret string, ttl time.Duration, mailer *Mailer) *Provider {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Provider{secret: []byte(secret), ttl: ttl, mailer: mailer}
}

func accountKey(email string) string {
	return "account:" + strings.ToLower(strings.TrimSpace(email))
}

func resetKey(token string) string {
	return "reset:" + token
}

func loadAccount(email string) (account, error) {
	raw, err := store.Get(accountKey(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return account{}, ErrNotFound
		}
		return account{}, err
	}
	var a account
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return account{}, fmt.Errorf("corrupt account record: %w", err)
	}
	return a, nil
}

func saveAccount(a account) error {
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return store.Set(accountKey(a.Email), string(b))
}

// Signup registers a new account and returns its generated user id.
func (p *Provider) Signup(email, password string) (string, error) {
	if _, err := loadAccount(email); err == nil {
		return "", ErrExists
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	a := account{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().UnixMilli(),
	}
	if err := saveAccount(a); err != nil {
		return "", err
	}
	logger.Info("account_created", "user", a.ID)
	return a.ID, nil
}

// Login verifies credentials, bumps last sign-in and issues a token.
func (p *Provider) Login(email, password string) (string, Identity, error) {
	a, err := loadAccount(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", Identity{}, ErrInvalidCredentials
		}
		return "", Identity{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		logger.Warn("login_failed", "user", a.ID)
		return "", Identity{}, ErrInvalidCredentials
	}
	a.LastSignInAt = time.Now().UTC().UnixMilli()
	if err := saveAccount(a); err != nil {
		return "", Identity{}, err
	}
	tok, err := p.IssueToken(a.ID, a.Email)
	if err != nil {
		return "", Identity{}, err
	}
	logger.Info("login_ok", "user", a.ID)
	return tok, Identity{ID: a.ID, Email: a.Email}, nil
}

// IssueToken mints a signed HS256 bearer token for the given identity.
func (p *Provider) IssueToken(userID, email string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(p.ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.secret)
}

// Verify parses and validates a bearer token and returns the caller
// identity.
func (p *Provider) Verify(tokenString string) (Identity, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrBadToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrBadToken
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" || email == "" {
		return Identity{}, ErrBadToken
	}
	return Identity{ID: sub, Email: email}, nil
}

// ChangePassword re-authenticates with the current password, then rotates
// the stored hash.
func (p *Provider) ChangePassword(email, current, next string) error {
	a, err := loadAccount(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	if err := saveAccount(a); err != nil {
		return err
	}
	logger.Info("password_rotated", "user", a.ID)
	return nil
}

// VerifyPassword re-authenticates without issuing a token. Used by the
// self-service account deletion flow.
func (p *Provider) VerifyPassword(email, password string) error {
	a, err := loadAccount(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RequestReset starts a password reset. Whether the email exists is never
// revealed to the caller: unknown addresses are a silent no-op.
func (p *Provider) RequestReset(email string) error {
	a, err := loadAccount(email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Info("reset_requested_unknown_email")
			return nil
		}
		return err
	}
	token := uuid.NewString()
	rec := resetRecord{
		Email:     a.Email,
		ExpiresAt: time.Now().UTC().Add(resetTTL).UnixMilli(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := store.Set(resetKey(token), string(b)); err != nil {
		return err
	}
	if p.mailer != nil {
		if err := p.mailer.SendReset(a.Email, token); err != nil {
			logger.Error("reset_mail_failed", "user", a.ID, "error", err)
			// token stays usable; operators can recover it from the log below
		}
	} else {
		logger.Info("reset_token_issued", "user", a.ID, "token", token)
	}
	return nil
}

// CompleteReset consumes a reset token and installs the new password.
func (p *Provider) CompleteReset(token, newPassword string) error {
	raw, err := store.Get(resetKey(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBadToken
		}
		return err
	}
	var rec resetRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ErrBadToken
	}
	if time.Now().UTC().UnixMilli() > rec.ExpiresAt {
		_ = store.Delete(resetKey(token))
		return ErrBadToken
	}
	a, err := loadAccount(rec.Email)
	if err != nil {
		return ErrBadToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	if err := saveAccount(a); err != nil {
		return err
	}
	_ = store.Delete(resetKey(token))
	logger.Info("password_reset_completed", "user", a.ID)
	return nil
}

// Delete removes the account record for email.
func (p *Provider) Delete(email string) error {
	if _, err := loadAccount(email); err != nil {
		return err
	}
	return store.Delete(accountKey(email))
}

// Meta returns audit metadata for email.
func (p *Provider) Meta(email string) (AccountMeta, error) {
	a, err := loadAccount(email)
	if err != nil {
		return AccountMeta{}, err
	}
	return AccountMeta{CreatedAt: a.CreatedAt, LastSignInAt: a.LastSignInAt}, nil
}
