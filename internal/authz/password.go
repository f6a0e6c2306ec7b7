package authz

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plaintext password with a per-password salt.
func HashPassword(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether candidate matches hashed. Comparison is
// constant-time with respect to candidate.
func VerifyPassword(hashed, candidate string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(candidate)) == nil
}
