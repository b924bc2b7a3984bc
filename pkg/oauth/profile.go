package oauth

import "strings"

// Profile is the provider-neutral identity extracted from a provider
// response. Empty fields mean the provider did not supply a value.
type Profile struct {
	Email     string
	FirstName string
	LastName  string
	Avatar    string
}

// GoogleProfile is the shape of Google's userinfo response
type GoogleProfile struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Name       string `json:"name"`
	Picture    string `json:"picture"`
}

// Normalize maps a Google profile to the provider-neutral form. When the
// structured name fields are absent it falls back to splitting the combined
// display name.
func (g GoogleProfile) Normalize() Profile {
	first := g.GivenName
	last := g.FamilyName
	if first == "" {
		first = firstNameToken(g.Name)
	}
	if last == "" {
		last = lastNameToken(g.Name)
	}

	return Profile{
		Email:     g.Email,
		FirstName: first,
		LastName:  last,
		Avatar:    g.Picture,
	}
}

// FacebookProfile is the shape of the Graph API /me response
type FacebookProfile struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// Normalize maps a Facebook profile to the provider-neutral form. Facebook
// only exposes a combined name, so it is always split.
func (f FacebookProfile) Normalize() Profile {
	return Profile{
		Email:     f.Email,
		FirstName: firstNameToken(f.Name),
		LastName:  lastNameToken(f.Name),
		Avatar:    f.Picture.Data.URL,
	}
}

// firstNameToken returns the first whitespace-separated token of a combined
// name, or the whole name when it has a single token.
func firstNameToken(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// lastNameToken returns the final token of a combined name, or "" when the
// name has fewer than two tokens.
func lastNameToken(name string) string {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}
