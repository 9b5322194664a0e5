package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a password with the configured bcrypt cost.
// Costs below the library default or above the maximum are replaced by
// the default, so a misconfigured BCRYPT_COST can never produce
// trivially weak hashes or lock up registration.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.DefaultCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored bcrypt hash with a login attempt in
// constant time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
