// Package types is the realtime wire protocol shared by the client channel
// and the server websocket handler.
//
// Client -> Server (best effort, high frequency):
//
//	join-room / leave-room  {canvasId}
//	card-move               {cardId, positionX, positionY, groupId?}
//	vertex-move             {connectionId, vertexId, x, y}
//	group-move              {groupId, positionX, positionY}
//	group-resize            {groupId, width, height}
//
// Server -> Client (authoritative fan-out):
//
//	full-canvas-update, card-updated, card-moved,
//	connection-created/updated/deleted,
//	vertex-created/moved/updated/deleted,
//	group-moved, group-resized, error
package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/DoyleJ11/lol-draft-canvas/internal/canvas"
)

var ErrUnknownEvent = errors.New("unknown event")
var ErrInvalidPayload = errors.New("invalid payload")

type EventName string

const (
	JoinRoom    EventName = "join-room"
	LeaveRoom   EventName = "leave-room"
	CardMove    EventName = "card-move"
	VertexMove  EventName = "vertex-move"
	GroupMove   EventName = "group-move"
	GroupResize EventName = "group-resize"

	FullCanvasUpdate  EventName = "full-canvas-update"
	CardUpdated       EventName = "card-updated"
	CardMoved         EventName = "card-moved"
	ConnectionCreated EventName = "connection-created"
	ConnectionUpdated EventName = "connection-updated"
	ConnectionDeleted EventName = "connection-deleted"
	VertexCreated     EventName = "vertex-created"
	VertexMoved       EventName = "vertex-moved"
	VertexUpdated     EventName = "vertex-updated"
	VertexDeleted     EventName = "vertex-deleted"
	GroupMoved        EventName = "group-moved"
	GroupResized      EventName = "group-resized"
	Error             EventName = "error"

	// Reconnected is raised by the client channel after it rejoins a room on
	// a fresh connection. It never travels on the wire.
	Reconnected EventName = "reconnected"
)

// Envelope is every frame on the wire.
type Envelope struct {
	Type     EventName       `json:"type"`
	CanvasID string          `json:"canvasId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type Room struct {
	CanvasID string `json:"canvasId" validate:"required"`
}

type CardPosition struct {
	CardID    string  `json:"cardId" validate:"required"`
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
	GroupID   *string `json:"groupId,omitempty"`
}

type VertexPosition struct {
	ConnectionID string  `json:"connectionId" validate:"required"`
	VertexID     string  `json:"vertexId" validate:"required"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
}

type GroupPosition struct {
	GroupID   string  `json:"groupId" validate:"required"`
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
}

type GroupSize struct {
	GroupID string  `json:"groupId" validate:"required"`
	Width   float64 `json:"width" validate:"gt=0"`
	Height  float64 `json:"height" validate:"gt=0"`
}

type CanvasUpdate struct {
	Name        string              `json:"name"`
	Cards       []canvas.Card       `json:"cards" validate:"dive"`
	Connections []canvas.Connection `json:"connections" validate:"dive"`
	Groups      []canvas.Group      `json:"groups" validate:"dive"`
}

type CardChange struct {
	Card canvas.Card `json:"card"`
}

type ConnectionChange struct {
	Connection canvas.Connection `json:"connection"`
}

type ConnectionRef struct {
	ConnectionID string `json:"connectionId" validate:"required"`
}

type VertexChange struct {
	ConnectionID string        `json:"connectionId" validate:"required"`
	Vertex       canvas.Vertex `json:"vertex"`
	Index        int           `json:"index" validate:"gte=0"`
}

type VertexRef struct {
	ConnectionID string `json:"connectionId" validate:"required"`
	VertexID     string `json:"vertexId" validate:"required"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

var payloads = map[EventName]func() any{
	JoinRoom:          func() any { return &Room{} },
	LeaveRoom:         func() any { return &Room{} },
	CardMove:          func() any { return &CardPosition{} },
	VertexMove:        func() any { return &VertexPosition{} },
	GroupMove:         func() any { return &GroupPosition{} },
	GroupResize:       func() any { return &GroupSize{} },
	FullCanvasUpdate:  func() any { return &CanvasUpdate{} },
	CardUpdated:       func() any { return &CardChange{} },
	CardMoved:         func() any { return &CardPosition{} },
	ConnectionCreated: func() any { return &ConnectionChange{} },
	ConnectionUpdated: func() any { return &ConnectionChange{} },
	ConnectionDeleted: func() any { return &ConnectionRef{} },
	VertexCreated:     func() any { return &VertexChange{} },
	VertexMoved:       func() any { return &VertexPosition{} },
	VertexUpdated:     func() any { return &VertexChange{} },
	VertexDeleted:     func() any { return &VertexRef{} },
	GroupMoved:        func() any { return &GroupPosition{} },
	GroupResized:      func() any { return &GroupSize{} },
	Error:             func() any { return &ErrorMessage{} },
}

// relays maps a client move to the event the room fans out.
var relays = map[EventName]EventName{
	CardMove:    CardMoved,
	VertexMove:  VertexMoved,
	GroupMove:   GroupMoved,
	GroupResize: GroupResized,
}

func Relay(out EventName) (EventName, bool) {
	in, ok := relays[out]
	return in, ok
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Message is a decoded, validated frame. Payload is a pointer to the struct
// registered for Name.
type Message struct {
	Name     EventName
	CanvasID string
	Payload  any
}

// Decode parses and validates one frame. Nothing partially decoded escapes:
// any failure returns an error and a zero Message.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	mk, ok := payloads[env.Type]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
	p := mk()
	if len(env.Payload) == 0 {
		return Message{}, fmt.Errorf("%w: %s has no payload", ErrInvalidPayload, env.Type)
	}
	if err := json.Unmarshal(env.Payload, p); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	if err := validate.Struct(p); err != nil {
		return Message{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Type, err)
	}
	return Message{Name: env.Type, CanvasID: env.CanvasID, Payload: p}, nil
}

func Encode(name EventName, canvasID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: name, CanvasID: canvasID, Payload: raw})
}
