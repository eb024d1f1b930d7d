package oauth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dealflow/platform-server-go/internal/util"
)

var (
	ErrStateMalformed = errors.New("malformed OAuth state")
	ErrStateSignature = errors.New("OAuth state signature mismatch")
	ErrStateExpired   = errors.New("OAuth state expired")
)

// EncodeState builds the opaque state parameter round-tripped through the
// provider: base64url(userID "." issuedUnix "." hmac(secret, userID|issuedUnix)).
// The signature binds the callback to the user who initiated the connect and
// lets the callback run without a bearer token.
func EncodeState(secret, userID string, issuedAt time.Time) string {
	issued := strconv.FormatInt(issuedAt.Unix(), 10)
	sig := util.HmacSHA256(secret, userID+"|"+issued)
	raw := fmt.Sprintf("%s.%s.%s", userID, issued, sig)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeState validates and parses a state parameter. It returns the owning
// user id and the state signature (used as the replay-guard key). A state
// older than maxAge is rejected.
func DecodeState(secret, state string, maxAge time.Duration, now time.Time) (userID, signature string, err error) {
	decoded, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return "", "", ErrStateMalformed
	}

	parts := strings.Split(string(decoded), ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", "", ErrStateMalformed
	}

	issuedUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", "", ErrStateMalformed
	}

	expected := util.HmacSHA256(secret, parts[0]+"|"+parts[1])
	if !util.ConstantTimeEqual(expected, parts[2]) {
		return "", "", ErrStateSignature
	}

	issuedAt := time.Unix(issuedUnix, 0)
	if now.Sub(issuedAt) > maxAge || issuedAt.After(now.Add(time.Minute)) {
		return "", "", ErrStateExpired
	}

	return parts[0], parts[2], nil
}
