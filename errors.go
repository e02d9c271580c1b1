package hostcert

import "errors"

var (
	// ErrCacheInit is returned when the cache root directory cannot be created.
	ErrCacheInit = errors.New("cache directory could not be created")

	// ErrNotPending is returned when an operation targets a hostname with no
	// cached artifacts. Callers treat it as a warning, not a failure.
	ErrNotPending = errors.New("no cached request for hostname")

	// ErrGeneration is returned when key or signing-request generation fails.
	// Fatal for the whole run.
	ErrGeneration = errors.New("key and request generation failed")

	// ErrSubmission is returned when handing the signing request to the CA
	// fails. Fatal for the whole run; the cached artifacts are rolled back
	// first so no orphaned pending entry remains.
	ErrSubmission = errors.New("request submission failed")

	// ErrInvalidCertificate is returned when a fetched body does not parse as
	// a certificate. Expected steady-state while the CA has not issued yet.
	ErrInvalidCertificate = errors.New("response is not a valid certificate")

	// ErrPurge is returned when the cache root cannot be removed.
	ErrPurge = errors.New("cache purge failed")
)
