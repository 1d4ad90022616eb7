package ddnsrelay

import "crypto/subtle"

// StaticCredentials is an Authenticator that accepts exactly one username and password pair.
type StaticCredentials struct {
	Username string
	Password string
}

// Authenticate implements Authenticator.
func (c StaticCredentials) Authenticate(username, password string) bool {
	// both comparisons always run so timing does not reveal which one failed
	userOK := constantTimeEqual(username, c.Username)
	passOK := constantTimeEqual(password, c.Password)
	return userOK && passOK
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
