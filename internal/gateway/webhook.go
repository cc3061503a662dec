package gateway

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // Square signs webhooks with HMAC-SHA1.
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignHMACSHA1Hex returns the hex HMAC-SHA1 of payload.
func SignHMACSHA1Hex(payload []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignHMACSHA256Hex returns the hex HMAC-SHA256 of payload.
func SignHMACSHA256Hex(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA1Hex checks a hex HMAC-SHA1 signature over the raw payload. An
// optional "sha1=" prefix is stripped.
func VerifyHMACSHA1Hex(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha1=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// VerifyHMACSHA256 checks an HMAC-SHA256 signature. The header is either a bare
// hex digest over the payload or "t=<timestamp>,v1=<hex>" where the digest
// covers "<timestamp>.<payload>".
func VerifyHMACSHA256(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimSpace(signature)

	signed := payload
	var candidates []string
	if strings.Contains(signature, "=") {
		var timestamp string
		for _, part := range strings.Split(signature, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue
			}
			switch k {
			case "t":
				timestamp = v
			case "v1":
				candidates = append(candidates, v)
			}
		}
		if timestamp == "" || len(candidates) == 0 {
			return false
		}
		signed = append([]byte(timestamp+"."), payload...)
	} else {
		candidates = []string{signature}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signed)
	expected := mac.Sum(nil)

	for _, c := range candidates {
		got, err := hex.DecodeString(c)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return true
		}
	}
	return false
}
