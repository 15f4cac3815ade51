package ws

import "encoding/json"

// Входящие события.
const (
	EventJoinQueue    = "JOIN_QUEUE"
	EventLeaveQueue   = "LEAVE_QUEUE"
	EventToggleStatus = "TOGGLE_STATUS"
)

// Исходящие события.
const (
	EventQueueUpdated  = "QUEUE_UPDATED"
	EventStatusChanged = "STATUS_CHANGED"
	EventError         = "ERROR"
)

// Inbound: конверт входящего сообщения: {"event": "...", "data": {...}}.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type Outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type JoinQueue struct {
	UserID     string `json:"userId"`
	ProviderID string `json:"providerId"`
}

type LeaveQueue struct {
	EntryID    string `json:"entryId"`
	ProviderID string `json:"providerId"`
}

type ToggleStatus struct {
	ProviderID string `json:"providerId"`
}

type StatusChanged struct {
	IsOpen bool `json:"isOpen"`
}

func Encode(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Outbound{Event: event, Data: data})
}
