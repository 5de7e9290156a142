package registry

// OfferState names the position of an Offer in the rendezvous state
// machine.
type OfferState int

const (
	// Pending: created by request, awaiting the target's accept/decline.
	Pending OfferState = iota
	// Accepted: target answered accept=true, awaiting session exchange.
	Accepted
)

// Offer is an in-progress peer-to-peer rendezvous between two Users.
type Offer struct {
	ID     string
	Origin string // user id of the requester
	Target string // user id of the addressee
	State  OfferState

	// originSent/targetSent record whether that side has already sent its
	// session message, so the offer is only removed once both have
	// exchanged.
	originSent bool
	targetSent bool
}

// sessionSent marks participant (identified by user id) as having sent its
// session message, and reports whether both sides have now sent theirs.
func (o *Offer) sessionSent(userID string) (alreadySent, bothSent bool) {
	if userID == o.Origin {
		alreadySent = o.originSent
		o.originSent = true
	} else {
		alreadySent = o.targetSent
		o.targetSent = true
	}
	return alreadySent, o.originSent && o.targetSent
}
