package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rahul-singh01/warm-transfer/internal/rooms"
)

// Issuer mints scoped, time-limited media join tokens. The external transport
// trusts these tokens to grant room membership; the core validates only
// expiry and role consistency before handing them off.
//
// Stateless apart from the signing secret: identical inputs produce identical
// tokens except for the embedded expiry and jti.
type Issuer struct {
	secret     []byte
	serverURL  string
	defaultTTL time.Duration
}

// Config carries the signing material. Secret is process-fatal when missing;
// there is no per-call recovery from a bad signing setup.
type Config struct {
	Secret     string
	ServerURL  string
	DefaultTTL time.Duration
}

var ErrSigningConfig = errors.New("token: signing secret is required")

func NewIssuer(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, ErrSigningConfig
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{
		secret:     []byte(cfg.Secret),
		serverURL:  cfg.ServerURL,
		defaultTTL: ttl,
	}, nil
}

// Grants mirror the transport's media permissions. Every token this core
// issues allows joining exactly one room.
type Grants struct {
	RoomJoin       bool   `json:"room_join"`
	Room           string `json:"room"`
	CanPublish     bool   `json:"can_publish"`
	CanSubscribe   bool   `json:"can_subscribe"`
	CanPublishData bool   `json:"can_publish_data"`
}

type Claims struct {
	jwt.RegisteredClaims

	Name   string     `json:"name"`
	Role   rooms.Role `json:"role"`
	Grants Grants     `json:"video"`
}

// Token is the issued credential plus the metadata callers echo to clients.
type Token struct {
	JWT       string    `json:"token"`
	URL       string    `json:"url"`
	RoomID    string    `json:"room_id"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ServerURL is the transport endpoint clients connect to with the token.
func (i *Issuer) ServerURL() string { return i.serverURL }

// DefaultTTL reports the configured token lifetime.
func (i *Issuer) DefaultTTL() time.Duration { return i.defaultTTL }

// Issue mints a join token for (room, identity, role). A ttl <= 0 falls back
// to the configured default.
func (i *Issuer) Issue(roomID, identity, name string, role rooms.Role, ttl time.Duration) (Token, error) {
	return i.IssueAt(time.Now(), roomID, identity, name, role, ttl)
}

// IssueAt is Issue with an explicit clock, for deterministic tests.
func (i *Issuer) IssueAt(now time.Time, roomID, identity, name string, role rooms.Role, ttl time.Duration) (Token, error) {
	if roomID == "" || identity == "" {
		return Token{}, errors.New("token: room id and identity are required")
	}
	if !role.Valid() {
		return Token{}, errors.New("token: invalid role")
	}
	if ttl <= 0 {
		ttl = i.defaultTTL
	}

	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Name: name,
		Role: role,
		Grants: Grants{
			RoomJoin:       true,
			Room:           roomID,
			CanPublish:     true,
			CanSubscribe:   true,
			CanPublishData: true,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{
		JWT:       signed,
		URL:       i.serverURL,
		RoomID:    roomID,
		Identity:  identity,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks signature and expiry and returns the claims. Role and room
// consistency against the request is the caller's job.
func (i *Issuer) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	if claims.Subject == "" {
		return Claims{}, errors.New("token: subject missing")
	}
	if !claims.Grants.RoomJoin || claims.Grants.Room == "" {
		return Claims{}, errors.New("token: room grant missing")
	}
	if !claims.Role.Valid() {
		return Claims{}, errors.New("token: role missing")
	}
	return claims, nil
}
