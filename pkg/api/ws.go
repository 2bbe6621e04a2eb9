package api

type (
	// SubscribedResult is the first frame on an item's event stream: the
	// authoritative snapshot the subsequent events follow. A client that
	// reconnects reconciles from this frame instead of relying on the
	// stream for gap-filling
	SubscribedResult struct {
		Type  string    `json:"type"`
		State *RunState `json:"state"`
		Seq   int64     `json:"seq"`
	}
)

// SubscribedType is the frame type of the initial snapshot
const SubscribedType = "subscribed"
