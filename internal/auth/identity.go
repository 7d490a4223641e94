package auth

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Identity represents a normalized external authentication identity
// extracted from an IDP's identity token. It contains facts only,
// no decisions.
type Identity struct {
	ProviderUserID    string  // provider-scoped unique user identifier (sub)
	Email             string  // email returned by provider
	Username          *string // display name ("name" claim), may be absent
	ProfilePictureURL *string // "picture" claim, may be absent
}

// ParseIdentity validates and normalizes the claims mapping returned by
// an identity provider. The subject may arrive as a string or a number;
// a claim that is present but of the wrong type is a validation failure,
// an absent optional claim is not.
func ParseIdentity(claims map[string]any) (*Identity, error) {
	sub, err := subjectString(claims["sub"])
	if err != nil {
		return nil, err
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, fmt.Errorf("identity token missing email claim")
	}

	username, err := optionalString(claims, "name")
	if err != nil {
		return nil, err
	}

	picture, err := optionalString(claims, "picture")
	if err != nil {
		return nil, err
	}

	return &Identity{
		ProviderUserID:    sub,
		Email:             email,
		Username:          username,
		ProfilePictureURL: picture,
	}, nil
}

func subjectString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("identity token missing sub claim")
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case json.Number:
		return v.String(), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("identity token missing sub claim")
	}
}

func optionalString(claims map[string]any, key string) (*string, error) {
	raw, present := claims[key]
	if !present || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("identity token claim %q has unexpected type", key)
	}
	return &s, nil
}
