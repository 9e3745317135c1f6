package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// verifySignature checks base64(HMAC-SHA256(secret, body)) against the
// header value over the exact raw body.
func verifySignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sign(secret, body), provided)
}

func sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the header value the source would send for body.
func Sign(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(sign(secret, body))
}
