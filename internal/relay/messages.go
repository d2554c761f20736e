// Package relay is the UI facing side of an export: it accepts control messages, owns
// the orchestrator of the current run and fans progress events out to listeners.
package relay

import (
	"orderexport/internal/export"
)

type MessageType string

const (
	StartExport    MessageType = "START_EXPORT"
	StopExport     MessageType = "STOP_EXPORT"
	ExportProgress MessageType = "EXPORT_PROGRESS"
)

// Message is an inbound control message. Options is only read for StartExport.
type Message struct {
	Type    MessageType     `json:"type"`
	Options *export.Options `json:"options,omitempty"`
}

// Response answers a control message.
type Response struct {
	Success    bool   `json:"success"`
	OrderCount int    `json:"orderCount"`
	ItemCount  int    `json:"itemCount"`
	Filename   string `json:"filename,omitempty"`
	Error      string `json:"error,omitempty"`
}

func failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// Event is an outbound progress event.
type Event struct {
	Type MessageType     `json:"type"`
	Data export.Progress `json:"data"`
}

func progressEvent(p export.Progress) Event {
	return Event{Type: ExportProgress, Data: p}
}
