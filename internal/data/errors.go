package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrJobIDRequired = errors.New("job_id is required")
)
