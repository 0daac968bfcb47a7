// internal/realtime/errors.go
package realtime

import "errors"

var errInvalidAuthFrame = errors.New("realtime: first frame must be authenticate with a token")
