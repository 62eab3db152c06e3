package storage

import "errors"

// ErrPathEscapesBase is returned for paths resolving outside the storage directory
var ErrPathEscapesBase = errors.New("path escapes base directory")
