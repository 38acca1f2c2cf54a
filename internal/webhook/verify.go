package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyGitHubSignature verifies the X-Hub-Signature-256 header using HMAC
// SHA-256 and constant-time comparison.
func VerifyGitHubSignature(payload []byte, signature, secret string) bool {
	if !strings.HasPrefix(signature, "sha256=") {
		return false
	}
	receivedHash := strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expectedHash := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(receivedHash), []byte(expectedHash))
}

// ValidateSignatureHeader validates the X-Hub-Signature-256 header shape
// before any crypto work.
func ValidateSignatureHeader(header string) error {
	if header == "" {
		return fmt.Errorf("missing X-Hub-Signature-256 header")
	}
	if !strings.HasPrefix(header, "sha256=") {
		return fmt.Errorf("invalid signature format, expected 'sha256=<hash>'")
	}
	return nil
}

// VerifyGitLabToken checks the X-Gitlab-Token header. GitLab sends the
// shared secret verbatim rather than an HMAC.
func VerifyGitLabToken(header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}
	return hmac.Equal([]byte(header), []byte(secret))
}
