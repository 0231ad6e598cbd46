package fivem

import (
	"bytes"
	"encoding/json"
	"time"
)

// The snapshot table holds exactly one row; pushes overwrite it in place.
const snapshotRowID = 1

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Snapshot is the persisted singleton row carrying the latest game-server push.
type Snapshot struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	DataJSON  string `gorm:"column:data_json;type:text;not null"`
	UpdatedAt string `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Snapshot) TableName() string {
	return "fivem_state"
}

// PushRequest is the raw payload presented by the game server. All fields
// are optional; normalization fills in defaults.
type PushRequest struct {
	TS      json.RawMessage `json:"ts"`
	Server  json.RawMessage `json:"server"`
	Players json.RawMessage `json:"players"`
}

// State is the reader-facing snapshot. Before any push it is the empty
// default: null timestamp, null server, empty players, null updated_at.
type State struct {
	TS      json.RawMessage `json:"ts"`
	Server  json.RawMessage `json:"server"`
	Players json.RawMessage `json:"players"`

	UpdatedAt *string `json:"updated_at"`
}

var (
	rawNull       = json.RawMessage("null")
	rawEmptyArray = json.RawMessage("[]")
)

func emptyState() State {
	return State{TS: rawNull, Server: rawNull, Players: rawEmptyArray}
}

// normalizePush applies the relay defaults: ts falls back to the current time
// in epoch milliseconds, server must be a JSON object or becomes null, and
// players must be a JSON array or becomes empty.
func normalizePush(request PushRequest, now time.Time) State {
	state := emptyState()

	if value, ok := presentValue(request.TS); ok {
		state.TS = value
	} else {
		millis, _ := json.Marshal(now.UnixMilli())
		state.TS = millis
	}
	if value, ok := presentValue(request.Server); ok && firstByte(value) == '{' {
		state.Server = value
	}
	if value, ok := presentValue(request.Players); ok && firstByte(value) == '[' {
		state.Players = value
	}

	return state
}

func presentValue(raw json.RawMessage) (json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, rawNull) {
		return nil, false
	}
	return trimmed, true
}

func firstByte(raw json.RawMessage) byte {
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
