package session

import "context"

// Committer receives the remote location of a completed upload.
type Committer interface {
	Commit(context.Context, string) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(context.Context, string) error

func (f CommitFunc) Commit(ctx context.Context, location string) error {
	return f(ctx, location)
}
