package flowstate

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
)

// The state query parameter is a compact HS256 JWT so the anti-CSRF token
// and the post-login destination survive the round trip through the IDP
// without any server-side storage.

const returnURLClaim = "return_url"

// relativeURLPattern accepts a leading slash followed by end-of-string or
// a word character. Protocol-relative URLs ("//evil.com") and absolute
// URLs fail the match.
var relativeURLPattern = regexp.MustCompile(`^/($|\w)`)

type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode signs a payload carrying the anti-CSRF token and, when present,
// the return URL.
func (c *Codec) Encode(csrfToken string, returnURL string) (string, error) {
	claims := jwt.MapClaims{
		"state": csrfToken,
	}
	if returnURL != "" {
		claims[returnURLClaim] = returnURL
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("flowstate: sign state token: %w", err)
	}
	return signed, nil
}

// Decode verifies the state token signature. An invalid or forged token
// is an expected outcome, reported as valid=false rather than an error.
func (c *Codec) Decode(token string) (valid bool, returnURL string) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("flowstate: unexpected signing method %q", t.Method.Alg())
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false, ""
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return false, ""
	}

	raw, present := claims[returnURLClaim]
	if !present {
		return true, ""
	}
	s, ok := raw.(string)
	if !ok {
		return false, ""
	}
	return true, s
}

// IsRelativeURL reports whether the URL is a same-origin relative path.
func IsRelativeURL(url string) bool {
	return relativeURLPattern.MatchString(url)
}

// GenerateToken generates a cryptographically random anti-CSRF token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("flowstate: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
