package domain

import "errors"

var (
	// ErrSourceNotFound is returned when a source ID is not registered.
	ErrSourceNotFound = errors.New("source not found")

	// ErrClientNotFound is returned when a client ID is not configured.
	ErrClientNotFound = errors.New("client not found")

	// ErrArticleNotFound is returned for lookups of unknown fingerprints.
	ErrArticleNotFound = errors.New("article not found")

	// ErrNetworkTransient marks fetch failures worth retrying.
	ErrNetworkTransient = errors.New("transient network failure")

	// ErrPermanentSource marks fetch failures that retries cannot fix,
	// such as a 404 or a TLS handshake rejection.
	ErrPermanentSource = errors.New("permanent source failure")

	// ErrExtractionMismatch marks a page that fetched fine but yielded no
	// candidates, usually because the site changed its layout.
	ErrExtractionMismatch = errors.New("extraction produced no candidates")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkTransient)
}

// IsPermanent reports whether err marks a source as unusable this cycle.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentSource)
}
