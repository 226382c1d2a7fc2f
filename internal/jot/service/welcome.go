package service

import (
	"fmt"
	"net/url"
	"strings"
)

// AccessURL is the self-referential link embedded in a welcome message.
func AccessURL(baseURL, token string) string {
	return strings.TrimSuffix(baseURL, "/") + "/?token=" + url.QueryEscape(token)
}

// WelcomeText is the seed content of a freshly created jot. A non-empty from names the jot
// it was created from and adds a link back to it.
func WelcomeText(baseURL, token, from string, canCreate bool) string {
	base := strings.TrimSuffix(baseURL, "/")
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to jotter!\n\n")
	if from != "" {
		fmt.Fprintf(&b, "This jot was created from: %s\n\n", AccessURL(base, from))
	}
	fmt.Fprintf(&b, "Make sure to save the link below, it's the only way to access this jot:\n\n")
	fmt.Fprintf(&b, "%s\n\n", AccessURL(base, token))
	if canCreate {
		fmt.Fprintf(&b, "To create a new jot, visit:\n\n%s/new\n\n", base)
		fmt.Fprintf(&b, "*CAUTION*: Creating a new jot in the same browser will switch to the new jot session. Make sure you save the link!\n\n")
	}
	fmt.Fprintf(&b, "If you want to \"log out\" of jotter, simply clear your browser's cookies.")
	return b.String()
}
