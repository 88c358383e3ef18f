package session

import (
	"github.com/MrEthical07/authflow/internal/schema"
)

const maxAccessTokenLen = 8192

// ValidateSession reports whether x is a complete, well-typed session. It
// accepts *AuthSession, AuthSession, or a decoded JSON object. Arrays and any
// other shape are rejected.
func ValidateSession(x any) bool {
	switch v := x.(type) {
	case *AuthSession:
		return v != nil && schema.Validate(v).OK
	case AuthSession:
		return schema.Validate(&v).OK
	case map[string]any:
		return validSessionObject(v)
	default:
		return false
	}
}

// ValidateProfile reports whether x is a well-typed profile. It accepts
// *UserProfile, UserProfile, or a decoded JSON object. Arrays are rejected.
func ValidateProfile(x any) bool {
	switch v := x.(type) {
	case *UserProfile:
		return v != nil && schema.Validate(v).OK
	case UserProfile:
		return schema.Validate(&v).OK
	case map[string]any:
		p, ok := profileFromObject(v)
		return ok && schema.Validate(p).OK
	default:
		return false
	}
}

func validSessionObject(obj map[string]any) bool {
	token, ok := obj["accessToken"].(string)
	if !ok || token == "" || len(token) > maxAccessTokenLen {
		return false
	}
	if raw, present := obj["refreshToken"]; present && raw != nil {
		if _, ok := raw.(string); !ok {
			return false
		}
	}
	if raw, present := obj["profile"]; present && raw != nil {
		if !ValidateProfile(raw) {
			return false
		}
	}
	return true
}

// profileFromObject extracts typed profile fields. ok is false when a field has
// the wrong JSON type; value rules are left to the schema.
func profileFromObject(obj map[string]any) (*UserProfile, bool) {
	id, ok := obj["id"].(string)
	if !ok {
		return nil, false
	}
	email, ok := obj["email"].(string)
	if !ok {
		return nil, false
	}
	p := &UserProfile{ID: id, Email: email}
	if raw, present := obj["name"]; present && raw != nil {
		name, ok := raw.(string)
		if !ok {
			return nil, false
		}
		p.Name = name
	}
	return p, true
}
