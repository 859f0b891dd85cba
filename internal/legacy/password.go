package legacy

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// IsLegacyHash reports whether hash uses the "method$salt$digest" format the
// previous backend stored (pbkdf2 or scrypt).
func IsLegacyHash(hash string) bool {
	return strings.HasPrefix(hash, "pbkdf2:") || strings.HasPrefix(hash, "scrypt:")
}

// CheckPassword verifies password against a legacy hash.
func CheckPassword(encoded, password string) bool {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 {
		return false
	}
	method, salt, digest := parts[0], parts[1], parts[2]
	expected, err := hex.DecodeString(digest)
	if err != nil || len(expected) == 0 {
		return false
	}

	var derived []byte
	params := strings.Split(method, ":")
	switch params[0] {
	case "pbkdf2":
		newHash, iterations, ok := pbkdf2Params(params)
		if !ok {
			return false
		}
		derived = pbkdf2.Key([]byte(password), []byte(salt), iterations, len(expected), newHash)
	case "scrypt":
		n, r, p, ok := scryptParams(params)
		if !ok {
			return false
		}
		derived, err = scrypt.Key([]byte(password), []byte(salt), n, r, p, len(expected))
		if err != nil {
			return false
		}
	default:
		return false
	}
	return subtle.ConstantTimeCompare(derived, expected) == 1
}

func pbkdf2Params(params []string) (func() hash.Hash, int, bool) {
	digest := "sha256"
	if len(params) > 1 {
		digest = params[1]
	}
	iterations := 600000
	if len(params) > 2 {
		parsed, err := strconv.Atoi(params[2])
		if err != nil || parsed <= 0 {
			return nil, 0, false
		}
		iterations = parsed
	}
	switch digest {
	case "sha256":
		return sha256.New, iterations, true
	case "sha512":
		return sha512.New, iterations, true
	case "sha1":
		return sha1.New, iterations, true
	}
	return nil, 0, false
}

func scryptParams(params []string) (int, int, int, bool) {
	n, r, p := 32768, 8, 1
	values := []*int{&n, &r, &p}
	for i, raw := range params[1:] {
		if i >= len(values) {
			break
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, 0, false
		}
		*values[i] = parsed
	}
	return n, r, p, true
}
