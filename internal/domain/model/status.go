package model

import (
	"encoding/json"
	"fmt"
)

// Status is the delivery lifecycle position of a message.
//
// The happy path is sending → sent → delivered → read. A message whose
// recipient is offline branches sent → queued, and rejoins via
// queued → delivered on the recipient's next registration. queued → failed
// covers capacity drops and queue-age expiry. read and failed are terminal.
type Status int16

const (
	StatusSending Status = iota + 1
	StatusSent
	StatusDelivered
	StatusRead
	StatusQueued
	StatusFailed
)

var statusNames = map[Status]string{
	StatusSending:   "sending",
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusRead:      "read",
	StatusQueued:    "queued",
	StatusFailed:    "failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// transitions is the single source of truth for allowed status moves.
// Anything absent here is rejected by the tracker, never applied.
var transitions = map[Status][]Status{
	StatusSending:   {StatusSent},
	StatusSent:      {StatusDelivered, StatusQueued},
	StatusQueued:    {StatusDelivered, StatusFailed},
	StatusDelivered: {StatusRead},
}

// CanAdvance reports whether moving from s to next is a legal transition.
func (s Status) CanAdvance(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range statusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", name)
}
