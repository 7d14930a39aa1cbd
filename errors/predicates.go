package errors

// IsAuthError checks if an error means the credentials were rejected or
// have expired.
func IsAuthError(err error) bool {
	k := Classify(err)
	return k == KindAuth || k == KindSessionExpired
}

// IsConnectionError checks if an error is a network failure, throttling or
// a server-side error. These are worth retrying.
func IsConnectionError(err error) bool {
	return Classify(err) == KindTransient
}

// IsPermissionError checks if an error is permission-related.
func IsPermissionError(err error) bool {
	return Classify(err) == KindPermission
}

// IsNotFound checks if an error reports a missing issue, project or resource.
func IsNotFound(err error) bool {
	return Classify(err) == KindNotFound
}

// IsConfigError checks if an error comes from an incomplete profile.
func IsConfigError(err error) bool {
	return Classify(err) == KindNotConfigured
}
