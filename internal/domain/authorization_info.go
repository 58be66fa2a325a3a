package domain

import "strings"

// AuthorizationInformation is a human-readable trace of one resolution run:
// one message per ranked candidate, or a single message explaining why no
// decision could be made.
type AuthorizationInformation struct {
	Messages []string
}

// Add appends one explanation message.
func (i *AuthorizationInformation) Add(message string) {
	i.Messages = append(i.Messages, message)
}

func (i *AuthorizationInformation) String() string {
	return strings.Join(i.Messages, "\n")
}
