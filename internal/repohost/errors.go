package repohost

import "errors"

var (
	// ErrNotFound indicates a file or directory path does not exist in the repository.
	ErrNotFound = errors.New("path not found")

	// ErrRepositoryNotFound indicates the repository itself is missing or not accessible.
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrQuotaExceeded indicates the host API quota is spent and all retries are exhausted.
	ErrQuotaExceeded = errors.New("api quota exceeded")

	// ErrQueryTooComplex indicates the host rejected a batched query as too expensive.
	// Retrying the same query cannot succeed; the batch must be split instead.
	ErrQueryTooComplex = errors.New("query too complex")

	// ErrTransport indicates a transient transport or server failure worth retrying.
	ErrTransport = errors.New("transport failure")
)
