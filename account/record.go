// Package account holds the types shared by the token source, the API client
// and the status resolver.
package account

// UserRecord is the remote account profile returned by auth-refresh.
// Only the email field is consulted.
type UserRecord map[string]any

// Email returns the record's email field. Missing or non-string values are
// reported as absent.
func (r UserRecord) Email() (string, bool) {
	if r == nil {
		return "", false
	}
	email, ok := r["email"].(string)
	return email, ok
}
