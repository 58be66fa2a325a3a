package domain

// SecurityInfo identifies an authenticated user to the authorization engine:
// a display name for explanations and an opaque identifier that permission
// rows reference. Constructed once per user at lookup time.
type SecurityInfo struct {
	Name       string
	Identifier string
}

// NewSecurityInfo validates and builds a SecurityInfo. Both fields are
// required.
func NewSecurityInfo(name, identifier string) (SecurityInfo, error) {
	if name == "" {
		return SecurityInfo{}, ErrValidation("security info name is required")
	}
	if identifier == "" {
		return SecurityInfo{}, ErrValidation("security info identifier is required")
	}
	return SecurityInfo{Name: name, Identifier: identifier}, nil
}

// User is any subject type the caller authenticates. The engine only ever
// reads its SecurityInfo.
type User interface {
	SecurityInfo() SecurityInfo
}
