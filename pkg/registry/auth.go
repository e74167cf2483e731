package registry

// Auth is the push registry's coordinates and credentials
type Auth struct {
	Host       string
	Repository string
	User       string
	Pass       string
}

// HasCredentials tells if the registry needs a login
func (a Auth) HasCredentials() bool {
	return a.User != "" && a.Pass != ""
}
