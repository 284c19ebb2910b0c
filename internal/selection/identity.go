package selection

import "context"

// Identity はリクエストの主体を表す。
// ログイン済みならUserID、匿名ならDeviceIDのみが設定される。
type Identity struct {
	UserID   string
	DeviceID string
}

// Authenticated はログイン済みかどうかを返す。
func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// Anonymous は匿名端末として識別できるかを返す。
func (i Identity) Anonymous() bool {
	return i.UserID == "" && i.DeviceID != ""
}

type identityKey struct{}

// WithIdentity はcontextにIdentityを格納する。
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext はcontextからIdentityを取り出す。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
