package interfaces

import (
	"context"
	"time"
)

// Identity is the optional result of a granted authorization.
type Identity struct {
	Name string
}

// Authorizer decides whether a credential grants the teacher role.
// It is invoked once per privileged connection at connect time; the
// grant holds until that connection closes.
type Authorizer interface {
	Authorize(ctx context.Context, credential string) (Identity, error)
}

// Clock supplies timestamps for question creation. Abstracted so tests
// can pin time.
type Clock interface {
	Now() time.Time
}
