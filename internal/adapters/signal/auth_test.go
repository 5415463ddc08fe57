package signal

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func mint(t *testing.T, secret, uid string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParseIdentityRoundTrip(t *testing.T) {
	token := mint(t, testSecret, "alice", time.Now().Add(time.Hour))
	uid, err := ParseIdentity(testSecret, token)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "alice" {
		t.Errorf("uid = %s", uid)
	}
}

func TestParseIdentityRejects(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong secret": mint(t, "other-secret", "alice", time.Now().Add(time.Hour)),
		"expired":      mint(t, testSecret, "alice", time.Now().Add(-time.Hour)),
		"no identity":  mint(t, testSecret, "", time.Now().Add(time.Hour)),
	}
	for name, token := range cases {
		if _, err := ParseIdentity(testSecret, token); !errors.Is(err, ErrBadToken) {
			t.Errorf("%s: expected ErrBadToken, got %v", name, err)
		}
	}
}

func TestParseIdentityRejectsUnsignedAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseIdentity(testSecret, token); !errors.Is(err, ErrBadToken) {
		t.Errorf("alg=none must be rejected, got %v", err)
	}
}
