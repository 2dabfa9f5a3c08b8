package endpoint

import "errors"

// Endpoint registry errors
var (
	ErrChannelSecretRequired = errors.New("LINE Channel Secret required")
	ErrPathTaken             = errors.New("endpoint path already taken")
	ErrPathExhausted         = errors.New("could not allocate a unique endpoint path")
)
