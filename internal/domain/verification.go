package domain

import "time"

// Verification record kinds.
const (
	VerificationOTP   = "otp"
	VerificationToken = "token"
)

// VerificationRecord is a single OTP or link token.
// OTP records are keyed by lowercased email and carry Code; link tokens are
// keyed by the token string and carry Email.
// ExpiresAt is a Unix timestamp in milliseconds, also used as the DynamoDB TTL source.
type VerificationRecord struct {
	Key       string `json:"key" dynamodbav:"key"`
	Kind      string `json:"kind" dynamodbav:"kind"`
	Code      string `json:"code,omitempty" dynamodbav:"code,omitempty"`
	Email     string `json:"email,omitempty" dynamodbav:"email,omitempty"`
	ExpiresAt int64  `json:"expires_at" dynamodbav:"expires_at"`
	TTL       int64  `json:"-" dynamodbav:"ttl"`
}

// Expired reports whether the record is past its expiry at now.
func (v *VerificationRecord) Expired(now time.Time) bool {
	return now.UnixMilli() > v.ExpiresAt
}
