package condition

import "errors"

// ErrMalformedCondition indicates a condition configuration that cannot be
// parsed. The walker treats it as a configuration error, fatal to the run.
var ErrMalformedCondition = errors.New("malformed condition configuration")
