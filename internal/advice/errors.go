package advice

import "errors"

// ErrInvalidCategory is returned when the backend names a category outside
// the known set.
var ErrInvalidCategory = errors.New("invalid recommendation category")
