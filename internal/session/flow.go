package session

// Flow names the input a user is expected to send next.
type Flow int

const (
	FlowNone Flow = iota
	FlowFormat
	FlowCaption
	FlowPrefix
	FlowSuffix
	FlowTitle
	FlowAuthor
	FlowThumbnail
	FlowAddAdmin
	FlowRemoveAdmin
	FlowBan
	FlowUnban
	FlowAddChannel
	FlowBroadcast
)

var flowNames = map[Flow]string{
	FlowNone:        "idle",
	FlowFormat:      "awaiting_format",
	FlowCaption:     "awaiting_caption",
	FlowPrefix:      "awaiting_prefix",
	FlowSuffix:      "awaiting_suffix",
	FlowTitle:       "awaiting_title",
	FlowAuthor:      "awaiting_author",
	FlowThumbnail:   "awaiting_thumbnail",
	FlowAddAdmin:    "awaiting_admin_id",
	FlowRemoveAdmin: "awaiting_remove_admin_id",
	FlowBan:         "awaiting_ban_id",
	FlowUnban:       "awaiting_unban_id",
	FlowAddChannel:  "awaiting_channel_name",
	FlowBroadcast:   "awaiting_broadcast_text",
}

func (f Flow) String() string {
	if name, ok := flowNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFlow is the inverse of String. Used to decode cancel buttons.
func ParseFlow(name string) (Flow, bool) {
	for f, n := range flowNames {
		if n == name && f != FlowNone {
			return f, true
		}
	}
	return FlowNone, false
}

// Input is the kind of event a flow consumes.
type Input int

const (
	InputText Input = iota
	InputPhoto
)

func (i Input) String() string {
	if i == InputPhoto {
		return "photo"
	}
	return "text"
}

// Awaits reports which input kind completes the flow.
func (f Flow) Awaits() Input {
	if f == FlowThumbnail {
		return InputPhoto
	}
	return InputText
}

// Privileged flows require an authorized user.
func (f Flow) Privileged() bool {
	switch f {
	case FlowAddAdmin, FlowRemoveAdmin, FlowBan, FlowUnban, FlowAddChannel, FlowBroadcast:
		return true
	}
	return false
}
