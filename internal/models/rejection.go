package models

// RejectionKind identifies why a credential attempt was refused.
type RejectionKind string

const (
	KindMissingCredentials RejectionKind = "MissingCredentials"
	KindTemporarilyLocked  RejectionKind = "TemporarilyLocked"
	KindAlreadyExists      RejectionKind = "AlreadyExists"
	KindInvalidCredentials RejectionKind = "InvalidCredentials"
	KindStorageUnavailable RejectionKind = "StorageUnavailable"
)

// invalidCredentialsMessage is shared by "no such account" and "wrong password".
// Both conditions must keep producing byte-identical text so callers cannot tell
// which one occurred.
const invalidCredentialsMessage = "Invalid email or password"

// Rejection is a refused credential attempt with a stable, user-facing message.
type Rejection struct {
	Kind    RejectionKind
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

// Is matches any Rejection of the same kind.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	if !ok {
		return false
	}
	return t.Kind == r.Kind
}

var (
	ErrMissingCredentials = &Rejection{Kind: KindMissingCredentials, Message: "Email and password are required"}
	ErrTemporarilyLocked  = &Rejection{Kind: KindTemporarilyLocked, Message: "Account temporarily locked due to repeated failed attempts"}
	ErrAlreadyExists      = &Rejection{Kind: KindAlreadyExists, Message: "User already exists"}
	ErrInvalidCredentials = &Rejection{Kind: KindInvalidCredentials, Message: invalidCredentialsMessage}
	ErrStorageUnavailable = &Rejection{Kind: KindStorageUnavailable, Message: "Account storage is unavailable, please try again later"}
)

var rejectionsByKind = map[RejectionKind]*Rejection{
	KindMissingCredentials: ErrMissingCredentials,
	KindTemporarilyLocked:  ErrTemporarilyLocked,
	KindAlreadyExists:      ErrAlreadyExists,
	KindInvalidCredentials: ErrInvalidCredentials,
	KindStorageUnavailable: ErrStorageUnavailable,
}

// RejectionForKind looks up the canonical rejection for a kind string, as carried in
// the sign-in page's error query parameter.
func RejectionForKind(kind string) (*Rejection, bool) {
	r, ok := rejectionsByKind[RejectionKind(kind)]
	return r, ok
}
