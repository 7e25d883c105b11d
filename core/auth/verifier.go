package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/jdelaire/botauth/core/initdata"
)

// secretLabel keys the first HMAC round that turns a bot token into its secret.
const secretLabel = "WebAppData"

// CredentialSource supplies candidate credentials in a stable order.
type CredentialSource interface {
	All() []Credential
}

// DeriveSecret computes HMAC-SHA256(key="WebAppData", message=token).
func DeriveSecret(token string) []byte {
	mac := hmac.New(sha256.New, []byte(secretLabel))
	mac.Write([]byte(token))
	return mac.Sum(nil)
}

// Sign returns the lowercase hex hash a bot with this token would put in the
// hash field for checkString.
func Sign(token, checkString string) string {
	return signWithSecret(DeriveSecret(token), checkString)
}

func signWithSecret(secret []byte, checkString string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(checkString))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns the name of the first credential whose derived secret signs
// data to its hash. Every credential is tried because the payload does not say
// which bot issued it. Returns ErrAuthentication when the hash is missing or
// nothing matches.
func Verify(data *initdata.Data, creds CredentialSource) (string, error) {
	hash := data.Hash()
	if hash == "" {
		return "", ErrAuthentication
	}

	checkString := data.CheckString()
	for _, c := range creds.All() {
		if c.matches(checkString, hash) {
			return c.Name, nil
		}
	}
	return "", ErrAuthentication
}
