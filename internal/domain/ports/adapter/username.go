package adapter

import "context"

// UsernameResolver maps a commit author login to a chat username.
type UsernameResolver interface {
	Resolve(ctx context.Context, login string) (string, error)
}
