package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultSignatureTolerance bounds how old a timestamped signature may be.
const DefaultSignatureTolerance = 10 * time.Minute

// SignHMAC returns the hex HMAC-SHA256 of payload.
func SignHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a hex HMAC-SHA256 signature in constant time.
// A "sha256=" prefix is accepted.
func VerifyHMAC(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

// parseSignatureHeader splits "t=123,v1=abc,v1=def" style headers.
func parseSignatureHeader(header string) (ts string, sigs []string) {
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t", "ts":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	return ts, sigs
}

// VerifyTimestampedSignature implements the t=<unix>,v1=<hex> scheme: the
// HMAC covers "{t}.{payload}" and t must be within tolerance of now.
func VerifyTimestampedSignature(secret string, payload []byte, header string, tolerance time.Duration, now time.Time) bool {
	if secret == "" {
		return false
	}
	ts, sigs := parseSignatureHeader(header)
	if ts == "" || len(sigs) == 0 {
		return false
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := now.Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > tolerance {
		return false
	}
	signed := make([]byte, 0, len(ts)+1+len(payload))
	signed = append(signed, ts...)
	signed = append(signed, '.')
	signed = append(signed, payload...)
	ok := false
	for _, s := range sigs {
		// keep scanning so timing does not reveal which candidate matched
		if VerifyHMAC(secret, signed, s) {
			ok = true
		}
	}
	return ok
}

// SignTimestamped builds a header accepted by VerifyTimestampedSignature.
func SignTimestamped(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return "t=" + ts + ",v1=" + SignHMAC(secret, append([]byte(ts+"."), payload...))
}
