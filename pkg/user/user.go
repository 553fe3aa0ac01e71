package user

// User is the CalDAV account a request acts on. Credentials are never stored,
// they arrive with every request.
type User struct {
	Username   string
	Password   string
	ServerURL  string
	ServerType string
}

// Key identifies the account across requests.
func (u User) Key() string {
	return u.Username + "@" + u.ServerURL
}
