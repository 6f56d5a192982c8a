package stores

import (
	"context"

	auth "github.com/liut/simpauth"
)

type User = auth.User

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, false
	}
	user, ok := u.(*User)
	return user, ok
}
