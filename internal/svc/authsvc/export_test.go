package authsvc

// SetPasswordCompare replaces the password hash comparison.
func SetPasswordCompare(s *AuthService, fn func(hash, password []byte) error) {
	s.comparePassword = fn
}
