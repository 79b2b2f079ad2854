package event

import "github.com/RACOAI-Official/ems-realtime/domain"

// Wire event names. These are the frames clients see; renaming one is a
// protocol break.
const (
	NameMessage        = "message"
	NameNotification   = "notification"
	NameUpdateContacts = "updateContacts"
	NameStatusUpdate   = "user-status-update"
	NameLocationUpdate = "user-location-update"
	NameJoin           = "join"
	NameShareLocation  = "share-location"
)

// Event is one frame pushed over a live connection. Data must be
// JSON-marshalable; the gateway writes frames verbatim.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type StatusUpdate struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type LocationUpdate struct {
	UserID string  `json:"userId"`
	Lat    float64 `json:"lat"`
	Long   float64 `json:"long"`
}

func NewMessage(m domain.Message) Event {
	return Event{Name: NameMessage, Data: m}
}

func NewNotification(n domain.Notification) Event {
	return Event{Name: NameNotification, Data: n}
}

// NewUpdateContacts is a cheap hint telling the receiver's client to
// re-pull its contact summary instead of keeping it live-synchronized.
func NewUpdateContacts() Event {
	return Event{Name: NameUpdateContacts, Data: struct{}{}}
}

func NewStatusUpdate(userID string, online bool) Event {
	return Event{Name: NameStatusUpdate, Data: StatusUpdate{UserID: userID, Online: online}}
}

func NewLocationUpdate(loc LocationUpdate) Event {
	return Event{Name: NameLocationUpdate, Data: loc}
}
