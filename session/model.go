package session

// UserProfile is the account profile returned by the auth API. It is replaced
// wholesale on refresh, never patched.
type UserProfile struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// AuthSession is the persisted login state of this device. A session without
// an access token cannot exist.
type AuthSession struct {
	AccessToken  string       `json:"accessToken" validate:"required,max=8192"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	Profile      *UserProfile `json:"profile,omitempty"`
}

// Clone returns a deep copy of s.
func (s *AuthSession) Clone() *AuthSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Profile = s.Profile.Clone()
	return &out
}

// Clone returns a copy of p.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// CreateSession builds a new session. It never touches storage.
func CreateSession(accessToken, refreshToken string, profile *UserProfile) *AuthSession {
	return &AuthSession{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Profile:      profile.Clone(),
	}
}

// UpdateAccessToken returns a copy of s carrying newToken.
func UpdateAccessToken(s *AuthSession, newToken string) *AuthSession {
	out := s.Clone()
	if out == nil {
		return &AuthSession{AccessToken: newToken}
	}
	out.AccessToken = newToken
	return out
}

// UpdateProfile returns a copy of s with its profile replaced by p.
func UpdateProfile(s *AuthSession, p *UserProfile) *AuthSession {
	out := s.Clone()
	if out == nil {
		return nil
	}
	out.Profile = p.Clone()
	return out
}

// CreateRefreshedSession returns the session produced by a token refresh: the
// new access token with the refresh token and profile of s.
func CreateRefreshedSession(s *AuthSession, newAccessToken string) *AuthSession {
	if s == nil {
		return &AuthSession{AccessToken: newAccessToken}
	}
	return &AuthSession{
		AccessToken:  newAccessToken,
		RefreshToken: s.RefreshToken,
		Profile:      s.Profile.Clone(),
	}
}
