package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureScheme identifies which generation of notification authentication
// produced a given signature.
type SignatureScheme string

const (
	SchemeHMACSHA512 SignatureScheme = "hmac-sha512"
	SchemeLegacyMD5  SignatureScheme = "legacy-md5"
)

// signaturePrefix is the value prefix of the X-ANET-Signature header.
const signaturePrefix = "sha512="

// ComputeWebhookSignature returns the lowercase hex HMAC-SHA512 of body keyed
// by secret, as sent in the provider's X-ANET-Signature header.
func ComputeWebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature validates the X-ANET-Signature header value against
// the raw request body. The comparison is case-insensitive and constant-time.
func VerifyWebhookSignature(secret, header string, body []byte) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	given := header
	if strings.HasPrefix(strings.ToLower(given), signaturePrefix) {
		given = given[len(signaturePrefix):]
	}

	want := ComputeWebhookSignature(secret, body)

	if subtle.ConstantTimeCompare([]byte(strings.ToLower(given)), []byte(want)) != 1 {
		return fmt.Errorf("signature mismatch")
	}

	return nil
}

// ComputeSilentPostHash returns the uppercase MD5 keyed hash the provider
// includes with legacy silent-post notifications: MD5(secret + transID + amount).
func ComputeSilentPostHash(secret, transID, amount string) string {
	sum := md5.Sum([]byte(secret + transID + amount))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// VerifySilentPostHash validates the x_MD5_Hash field of a legacy silent post.
// Constant-time comparison on the uppercased values.
func VerifySilentPostHash(secret, transID, amount, given string) bool {
	want := ComputeSilentPostHash(secret, transID, amount)
	return subtle.ConstantTimeCompare([]byte(strings.ToUpper(given)), []byte(want)) == 1
}
