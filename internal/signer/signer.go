package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Headers carried on every outbound request. Receivers verify authenticity by
// recomputing the MAC over the timestamp header and the raw body.
const (
	SignatureHeader = "X-Hookline-Signature"
	TimestampHeader = "X-Hookline-Timestamp"
	EventHeader     = "X-Hookline-Event"
	DeliveryHeader  = "X-Hookline-Delivery"
	AttemptHeader   = "X-Hookline-Attempt"
)

// Sign computes an HMAC-SHA256 over the timestamp, event id, event type and
// raw payload bytes, keyed with the endpoint secret. The timestamp is unix
// seconds; it is signed so a receiver can reject stale replays, which is why
// every retry is re-signed at send time rather than reusing the enqueue-time
// signature.
func Sign(secret string, eventID, eventType string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write([]byte(eventID))
	mac.Write([]byte("."))
	mac.Write([]byte(eventType))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time.
// Intended for receivers and for tests.
func Verify(secret string, eventID, eventType string, payload []byte, ts int64, signature string) bool {
	expected := Sign(secret, eventID, eventType, payload, ts)
	return hmac.Equal([]byte(expected), []byte(signature))
}
