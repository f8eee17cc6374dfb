package token

import "fmt"

// Payload is the decoded claim set of a verified token.
type Payload map[string]any

// Subject returns the identity the token was issued for.
func (p Payload) Subject() (string, error) {
	id, ok := p.String(ClaimSubject)
	if !ok || id == "" {
		return "", fmt.Errorf("%w: missing %q claim", ErrMalformedPayload, ClaimSubject)
	}
	return id, nil
}

// String returns the string claim stored under key.
func (p Payload) String(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p[key].(string)
	return v, ok
}

// TokenID returns the unique id stamped on every token at signing.
func (p Payload) TokenID() string {
	id, _ := p.String(ClaimTokenID)
	return id
}
