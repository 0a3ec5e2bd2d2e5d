package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	errMalformedToken = errors.New("malformed download token")
	errBadSignature   = errors.New("invalid download token signature")
	errTokenExpired   = errors.New("download token expired")
)

// SignedURLSigner issues and checks HMAC-SHA256 download tokens of the form
// base64url(scope "\n" expiry "\n" key) "." base64url(mac).
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer; a non-positive ttl falls back to one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate binds scope and key to an expiry and signs them.
func (s *SignedURLSigner) Generate(scope, key string) (string, time.Time, error) {
	if scope == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("scope and key required")
	}
	if strings.ContainsRune(scope, '\n') || strings.ContainsRune(key, '\n') {
		return "", time.Time{}, fmt.Errorf("scope and key must be single-line")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := s.now().Add(s.ttl)
	payload := strings.Join([]string{scope, strconv.FormatInt(expiresAt.Unix(), 10), key}, "\n")
	token := base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(s.sign(payload))
	return token, expiresAt, nil
}

// Parse verifies the signature and, unless allowExpired is set, the expiry.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (scope, key string, expiresAt time.Time, err error) {
	encodedPayload, encodedMAC, ok := strings.Cut(token, ".")
	if !ok {
		return "", "", time.Time{}, errMalformedToken
	}
	rawPayload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return "", "", time.Time{}, errMalformedToken
	}
	mac, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil {
		return "", "", time.Time{}, errMalformedToken
	}
	payload := string(rawPayload)
	if !hmac.Equal(mac, s.sign(payload)) {
		return "", "", time.Time{}, errBadSignature
	}

	fields := strings.SplitN(payload, "\n", 3)
	if len(fields) != 3 {
		return "", "", time.Time{}, errMalformedToken
	}
	unix, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", "", time.Time{}, errMalformedToken
	}
	expiresAt = time.Unix(unix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return "", "", time.Time{}, errTokenExpired
	}
	return fields[0], fields[2], expiresAt, nil
}

func (s *SignedURLSigner) sign(payload string) []byte {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(payload))
	return h.Sum(nil)
}
