package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/salle/internal/adapters/repository"
	"github.com/okian/salle/internal/domain/dedupe"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/logger"
	"github.com/okian/salle/pkg/metrics"
)

const (
	purposeAccess    = "access"
	purposeMagicLink = "magic_link"
	minPasswordLen   = 8
	inviteTokenBytes = 32
)

// Claims is the JWT payload.
type Claims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Config holds the local provider settings.
type Config struct {
	Secret       string
	TokenTTL     time.Duration
	MagicLinkTTL time.Duration
	InviteTTL    time.Duration
	BaseURL      string
}

// Local is a Provider backed by the record store.
type Local struct {
	cfg        Config
	users      repository.UserStore
	mailer     Mailer
	revoked    dedupe.Deduper
	log        logger.Logger
	now        func() time.Time
	bcryptCost int
}

var _ Provider = (*Local)(nil)

// Option configures Local.
type Option func(*Local)

// WithMailer sets where magic links and invites are sent.
func WithMailer(m Mailer) Option { return func(l *Local) { l.mailer = m } }

// WithRevocations sets the store of signed-out and spent token ids.
func WithRevocations(d dedupe.Deduper) Option { return func(l *Local) { l.revoked = d } }

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option { return func(l *Local) { l.log = log } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(l *Local) { l.now = now } }

// WithBcryptCost lowers hashing cost, for tests.
func WithBcryptCost(cost int) Option { return func(l *Local) { l.bcryptCost = cost } }

// NewLocal builds a Local provider.
func NewLocal(cfg Config, users repository.UserStore, opts ...Option) (*Local, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.MagicLinkTTL <= 0 {
		cfg.MagicLinkTTL = 15 * time.Minute
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = 7 * 24 * time.Hour
	}
	l := &Local{
		cfg:        cfg,
		users:      users,
		log:        logger.Nop(),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.mailer == nil {
		l.mailer = NewLogMailer(l.log)
	}
	if l.revoked == nil {
		l.revoked = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
	}
	return l, nil
}

func (l *Local) SignInWithMagicLink(ctx context.Context, email string) error {
	u, err := l.authorized(ctx, email)
	if err != nil {
		metrics.RecordAuthAttempt("magic_link", "rejected")
		return err
	}
	token, _, err := l.sign(u, purposeMagicLink, l.cfg.MagicLinkTTL)
	if err != nil {
		return err
	}
	// users without a name land on name registration first
	path := "/auth/callback"
	if !u.Registered() {
		path = "/register-name"
	}
	link := l.link(path, token)
	if err := l.mailer.Send(ctx, Message{
		To:      u.Email,
		Subject: "Your sign-in link",
		Body:    "Use this link to sign in: " + link,
		Link:    link,
	}); err != nil {
		return model.Remote("send magic link", err)
	}
	metrics.RecordAuthAttempt("magic_link", "sent")
	return nil
}

func (l *Local) VerifyMagicLink(ctx context.Context, token string) (Session, error) {
	claims, err := l.parse(ctx, token, purposeMagicLink)
	if err != nil {
		metrics.RecordAuthAttempt("magic_link_verify", "rejected")
		return Session{}, err
	}
	// links are single use
	if l.revoked.SeenAndRecord(ctx, claims.ID) {
		return Session{}, ErrInvalidToken
	}
	u, err := l.authorized(ctx, claims.Email)
	if err != nil {
		return Session{}, err
	}
	metrics.RecordAuthAttempt("magic_link_verify", "ok")
	return l.session(u)
}

func (l *Local) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	u, err := l.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordAuthAttempt("password", "rejected")
		return Session{}, ErrInvalidCredentials
	case err != nil:
		return Session{}, model.Remote("load user", err)
	}
	if u.PasswordHash == "" {
		metrics.RecordAuthAttempt("password", "rejected")
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		metrics.RecordAuthAttempt("password", "rejected")
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("compare password hash: %w", err)
	}
	metrics.RecordAuthAttempt("password", "ok")
	return l.session(u)
}

func (l *Local) SignUp(ctx context.Context, email, password string) (Session, error) {
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}
	u, err := l.authorized(ctx, email)
	if err != nil {
		metrics.RecordAuthAttempt("signup", "rejected")
		return Session{}, err
	}
	if u.PasswordHash != "" {
		return Session{}, ErrAlreadyRegistered
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	if err := l.users.UpdateUser(ctx, u); err != nil {
		return Session{}, model.Remote("save password", err)
	}
	metrics.RecordAuthAttempt("signup", "ok")
	return l.session(u)
}

func (l *Local) SignOut(ctx context.Context, token string) error {
	claims, err := l.parse(ctx, token, purposeAccess)
	if err != nil {
		return err
	}
	l.revoked.SeenAndRecord(ctx, claims.ID)
	return nil
}

func (l *Local) GetSession(ctx context.Context, token string) (Session, error) {
	claims, err := l.parse(ctx, token, purposeAccess)
	if err != nil {
		return Session{}, err
	}
	if l.revoked.Seen(ctx, claims.ID) {
		return Session{}, ErrInvalidToken
	}
	u, err := l.authorized(ctx, claims.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: identityOf(u)}, nil
}

func (l *Local) VerifyInvite(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	u, err := l.users.GetUserByInviteHash(ctx, hashToken(token))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordAuthAttempt("invite", "rejected")
		return Session{}, ErrInvalidToken
	case err != nil:
		return Session{}, model.Remote("load invite", err)
	}
	if u.InviteExpiresAt == nil || !l.now().Before(*u.InviteExpiresAt) {
		metrics.RecordAuthAttempt("invite", "expired")
		return Session{}, ErrInvalidToken
	}
	u.InviteTokenHash = ""
	u.InviteExpiresAt = nil
	if err := l.users.UpdateUser(ctx, u); err != nil {
		return Session{}, model.Remote("consume invite", err)
	}
	metrics.RecordAuthAttempt("invite", "ok")
	return l.session(u)
}

func (l *Local) Invite(ctx context.Context, email, invitedBy string) error {
	u, err := l.authorized(ctx, email)
	if err != nil {
		return err
	}
	raw := make([]byte, inviteTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate invite token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	expires := l.now().Add(l.cfg.InviteTTL)
	u.InviteTokenHash = hashToken(token)
	u.InviteExpiresAt = &expires
	if err := l.users.UpdateUser(ctx, u); err != nil {
		return model.Remote("save invite", err)
	}

	link := l.link("/invite", token)
	if err := l.mailer.Send(ctx, Message{
		To:      u.Email,
		Subject: "You have been invited to the club tracker",
		Body:    invitedBy + " invited you. Accept here: " + link,
		Link:    link,
	}); err != nil {
		return model.Remote("send invite", err)
	}
	l.log.Info(ctx, "invite sent", logger.String("email", u.Email), logger.String("invited_by", invitedBy))
	return nil
}

// authorized loads an allow-listed user or fails with ErrNotAuthorized.
func (l *Local) authorized(ctx context.Context, email string) (model.AuthorizedUser, error) {
	u, err := l.users.GetUserByEmail(ctx, model.NormalizeEmail(email))
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.AuthorizedUser{}, ErrNotAuthorized
	case err != nil:
		return model.AuthorizedUser{}, model.Remote("load user", err)
	}
	return u, nil
}

func (l *Local) session(u model.AuthorizedUser) (Session, error) {
	token, expires, err := l.sign(u, purposeAccess, l.cfg.TokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: identityOf(u)}, nil
}

func (l *Local) sign(u model.AuthorizedUser, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := l.now()
	expires := now.Add(ttl)
	claims := Claims{
		Email:   u.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(l.cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// parse verifies signature, purpose and expiry against the provider clock.
func (l *Local) parse(_ context.Context, token, purpose string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(l.cfg.Secret), nil
	}); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.ID == "" || !claims.VerifyExpiresAt(l.now(), true) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (l *Local) link(path, token string) string {
	return strings.TrimRight(l.cfg.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
