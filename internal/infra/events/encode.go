package events

import "encoding/json"

type envelope struct {
	Event   string          `json:"event"`
	Version int             `json:"version"`
	Data    BookingSnapshot `json:"data"`
}

func marshalSnapshot(s BookingSnapshot) ([]byte, error) {
	return json.Marshal(envelope{Event: "booking.lifecycle", Version: 1, Data: s})
}
