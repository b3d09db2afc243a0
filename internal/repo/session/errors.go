package session

import "errors"

// ErrUnknownBackend is returned for an unsupported RepositoryConfig.Backend.
var ErrUnknownBackend = errors.New("unknown session backend")
