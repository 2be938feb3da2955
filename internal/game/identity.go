package game

// IdentityKind tags a PlayerIdentity as a signed-in member or an anonymous guest.
type IdentityKind string

const (
	KindMember IdentityKind = "member"
	KindGuest  IdentityKind = "guest"
)

// PlayerIdentity is who occupies a seat: a member carries a user id and username,
// a guest carries only a browser id. Equality is same kind, same identifier.
type PlayerIdentity struct {
	Kind      IdentityKind `json:"kind"`
	UserID    string       `json:"userId,omitempty"`
	Username  string       `json:"username,omitempty"`
	BrowserID string       `json:"browserId,omitempty"`
}

// Member builds a signed-in identity.
func Member(userID, username string) PlayerIdentity {
	return PlayerIdentity{Kind: KindMember, UserID: userID, Username: username}
}

// Guest builds an anonymous identity keyed by browser id.
func Guest(browserID string) PlayerIdentity {
	return PlayerIdentity{Kind: KindGuest, BrowserID: browserID}
}

// IsMember reports whether the identity is a signed-in member.
func (p PlayerIdentity) IsMember() bool {
	return p.Kind == KindMember
}

// Zero reports whether the identity is unset.
func (p PlayerIdentity) Zero() bool {
	return p.Kind == ""
}

// Equal compares identities structurally: kind plus the identifier for that kind.
// The username is display data and does not participate.
func (p PlayerIdentity) Equal(o PlayerIdentity) bool {
	if p.Kind != o.Kind {
		return false
	}
	switch p.Kind {
	case KindMember:
		return p.UserID == o.UserID
	case KindGuest:
		return p.BrowserID == o.BrowserID
	default:
		return false
	}
}

// DisplayName is the username for members and a guest marker otherwise.
func (p PlayerIdentity) DisplayName() string {
	if p.IsMember() {
		return p.Username
	}
	return "(Guest)"
}

// Key is the stable identifier used in logs and audit records: the user id
// for members, the browser id for guests.
func (p PlayerIdentity) Key() string {
	if p.IsMember() {
		return p.UserID
	}
	return p.BrowserID
}
