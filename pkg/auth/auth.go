// Package auth is the authorization collaborator the shell queries before
// dispatching privileged commands.
package auth

// Authorizer answers the three questions the shell asks: is the current
// session privileged, who is acting, and log the session out.
type Authorizer interface {
	IsAuthorized() bool
	CurrentIdentity() string
	Logout()
}

// Static is a fixed-answer Authorizer for tests and for embedding the shell
// where the host application owns authentication entirely.
type Static struct {
	Authorized bool
	Identity   string
	LoggedOut  bool
}

func (s *Static) IsAuthorized() bool { return s.Authorized }

func (s *Static) CurrentIdentity() string {
	if s.Identity == "" {
		return "unknown"
	}
	return s.Identity
}

func (s *Static) Logout() {
	s.Authorized = false
	s.LoggedOut = true
}
