package identity

// AnonymousUser is the value sent to the classifier when no identity
// is attached to the request.
const AnonymousUser = "anonymous"

// Identity is an opaque reference to an authenticated user. The zero
// value means anonymous; the scan flow never resolves it back to
// credentials or profile data.
type Identity struct {
	ID   string
	Name string
}

// Anonymous reports whether no authenticated user is attached.
func (i Identity) Anonymous() bool { return i.ID == "" }

// ClassifierUser is the identity string forwarded to the classifier
// service, or "anonymous" for unauthenticated scans.
func (i Identity) ClassifierUser() string {
	if i.Anonymous() {
		return AnonymousUser
	}
	return i.ID
}
