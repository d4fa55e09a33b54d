package domain

import "strings"

// CatalogCredentials are the affiliate API credentials. They are passed to the
// components that need them explicitly instead of being read from the environment.
type CatalogCredentials struct {
	AppKey     string
	AppSecret  string
	TrackingID string
}

// Complete reports whether every credential is present
func (c CatalogCredentials) Complete() bool {
	return strings.TrimSpace(c.AppKey) != "" &&
		strings.TrimSpace(c.AppSecret) != "" &&
		strings.TrimSpace(c.TrackingID) != ""
}
