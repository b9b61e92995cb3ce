package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
)

// SignatureHeaders are checked in order; the first non-empty one wins.
var SignatureHeaders = []string{"x-tavus-signature", "tavus-signature", "x-signature"}

// SignatureFromHeader returns the raw signature value, or "".
func SignatureFromHeader(h http.Header) string {
	for _, name := range SignatureHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// Digest computes HMAC-SHA256 of rawBody.
func Digest(rawBody []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return mac.Sum(nil)
}

// SignPayload produces a signature in the "sha256=<hex>" format.
func SignPayload(rawBody []byte, secret string) string {
	return "sha256=" + hex.EncodeToString(Digest(rawBody, secret))
}

// VerifySignature checks header against the HMAC-SHA256 of the raw body.
//
// Accepted header shapes:
//
//	<hex> | <base64>
//	sha256=<hex|base64>
//	t=<timestamp>, v1=<hex|base64>
//	t=<timestamp>, sha256=<hex|base64>
//
// Any other algorithm prefix fails, as does an empty secret or header.
func VerifySignature(rawBody []byte, header, secret string) bool {
	if secret == "" {
		return false
	}
	provided, ok := extractDigest(header)
	if !ok {
		return false
	}
	return digestMatches(provided, Digest(rawBody, secret))
}

func extractDigest(header string) (string, bool) {
	s := strings.TrimSpace(header)
	if s == "" {
		return "", false
	}

	if strings.Contains(s, ",") {
		return multiPartDigest(s)
	}

	key, value, found := strings.Cut(s, "=")
	if !found || isPadding(s[len(key):]) {
		return s, true
	}
	if !strings.EqualFold(strings.TrimSpace(key), "sha256") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// multiPartDigest reads the v1 or sha256 component of a "t=..., v1=..."
// header. Timestamps are not checked.
func multiPartDigest(s string) (string, bool) {
	for _, part := range strings.Split(s, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "v1", "sha256":
			value = strings.TrimSpace(value)
			return value, value != ""
		}
	}
	return "", false
}

// isPadding reports whether s is base64 trailing padding ("=" or "==").
func isPadding(s string) bool {
	return s == "=" || s == "=="
}

var base64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

func digestMatches(provided string, expected []byte) bool {
	if len(provided) == hex.EncodedLen(len(expected)) {
		if decoded, err := hex.DecodeString(provided); err == nil && hmac.Equal(decoded, expected) {
			return true
		}
	}
	for _, enc := range base64Encodings {
		decoded, err := enc.DecodeString(provided)
		if err != nil || len(decoded) != len(expected) {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}
