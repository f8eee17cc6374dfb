package session

import "net/http"

// Requirement states which cookies a request must carry.
type Requirement uint8

const (
	// RequireRefresh needs only the refresh cookie.
	RequireRefresh Requirement = iota + 1
	// RequireBoth needs the access and the refresh cookie.
	RequireBoth
)

// ExtractCredentials reads the session cookies from r. It returns nil when the
// requirement is not met. With RequireRefresh the access token may be empty.
func ExtractCredentials(r *http.Request, req Requirement) *Pair {
	if r == nil {
		return nil
	}

	refresh := cookieValue(r, RefreshCookie)
	if refresh == "" {
		return nil
	}
	access := cookieValue(r, AccessCookie)

	switch req {
	case RequireRefresh:
		return &Pair{AccessToken: access, RefreshToken: refresh}
	case RequireBoth:
		if access == "" {
			return nil
		}
		return &Pair{AccessToken: access, RefreshToken: refresh}
	default:
		return nil
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
