package ice

import "errors"

var (
	ErrNoRemote      = errors.New("ice: send before remote address is known")
	ErrNoPairs       = errors.New("ice: no pairs")
	ErrNoViablePair  = errors.New("ice: no viable pair")
	ErrMalformedStun = errors.New("ice: malformed STUN message")
)
