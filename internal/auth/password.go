package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a bcrypt hash of an unguessable throwaway value. Login
// compares against it when the principal does not exist, so the timing of
// a failed login does not reveal whether the account exists.
var dummyHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte("tavolo-dummy-credential"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// HashCredential hashes a plaintext credential with bcrypt.
func HashCredential(credential string) (string, error) {
	if credential == "" {
		return "", errors.New("credential is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyCredential compares a plaintext credential with the stored hash.
func VerifyCredential(hash, credential string) error {
	if hash == "" {
		return errors.New("credential hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential))
}

// burnCompare performs a comparison against the dummy hash to keep the
// cost of a miss in line with the cost of a real comparison.
func burnCompare(credential string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(credential))
}
