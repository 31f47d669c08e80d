package model

import "encoding/json"

// User is the profile of the signed-in user.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// DisplayName returns "First Last", falling back to the email address.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// Credential is the token pair and profile held for the current session.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// TokenPair is returned by OTP verification and token refresh. The backend
// answers in snake_case while older builds answered in camelCase; both
// decode.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

func (p *TokenPair) UnmarshalJSON(data []byte) error {
	var w struct {
		AccessToken       string `json:"access_token"`
		RefreshToken      string `json:"refresh_token"`
		AccessTokenCamel  string `json:"accessToken"`
		RefreshTokenCamel string `json:"refreshToken"`
		User              *User  `json:"user"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	p.AccessToken = w.AccessToken
	if p.AccessToken == "" {
		p.AccessToken = w.AccessTokenCamel
	}
	p.RefreshToken = w.RefreshToken
	if p.RefreshToken == "" {
		p.RefreshToken = w.RefreshTokenCamel
	}
	p.User = w.User
	return nil
}

func (p TokenPair) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		User         *User  `json:"user,omitempty"`
	}{p.AccessToken, p.RefreshToken, p.User})
}
