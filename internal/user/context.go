package user

import "context"

type ctxKey string

const contextUserKey ctxKey = "user"

func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextUserKey, u)
}

func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextUserKey).(*User)
	return u, ok && u != nil
}
