// Package protocol defines the wire envelope exchanged between observers,
// the relay and the simulator.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType discriminates the envelope.
type MessageType string

const (
	TypeInitialState    MessageType = "initial_state"
	TypeStateUpdate     MessageType = "state_update"
	TypeCommand         MessageType = "command"
	TypeCommandResponse MessageType = "command_response"
	TypeError           MessageType = "error"
)

// Verb is a command verb understood by the simulator.
type Verb string

const (
	VerbArm     Verb = "arm"
	VerbDisarm  Verb = "disarm"
	VerbTakeoff Verb = "takeoff"
	VerbLand    Verb = "land"
	VerbGoto    Verb = "goto"
	VerbRotate  Verb = "rotate"
	VerbMove    Verb = "move"
)

// requiredParams lists the numeric parameters each verb must carry.
var requiredParams = map[Verb][]string{
	VerbArm:     nil,
	VerbDisarm:  nil,
	VerbLand:    nil,
	VerbTakeoff: {"altitude"},
	VerbGoto:    {"x", "y", "z"},
	VerbRotate:  {"yaw"},
	VerbMove:    {"dx", "dy", "dz"},
}

// Message is the envelope for every frame on the wire. Only the fields
// relevant to the type are set; the rest are omitted from the JSON.
type Message struct {
	Type      MessageType        `json:"type"`
	Command   Verb               `json:"command,omitempty"`
	Params    map[string]float64 `json:"params,omitempty"`
	TargetID  string             `json:"targetId,omitempty"`
	Timestamp int64              `json:"timestamp,omitempty"`
	Data      json.RawMessage    `json:"data,omitempty"`
	Message   string             `json:"message,omitempty"`
}

func command(verb Verb, targetID string, params map[string]float64) Message {
	return Message{
		Type:      TypeCommand,
		Command:   verb,
		Params:    params,
		TargetID:  targetID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Arm builds an arm command for the given vehicle. The target id is bound
// at construction time so staggered sends cannot drift to another vehicle.
func Arm(targetID string) Message { return command(VerbArm, targetID, nil) }

// Disarm builds a disarm command.
func Disarm(targetID string) Message { return command(VerbDisarm, targetID, nil) }

// Land builds a land command.
func Land(targetID string) Message { return command(VerbLand, targetID, nil) }

// Takeoff builds a takeoff command to the given altitude.
func Takeoff(targetID string, altitude float64) Message {
	return command(VerbTakeoff, targetID, map[string]float64{"altitude": altitude})
}

// Goto builds a goto command to an absolute position.
func Goto(targetID string, x, y, z float64) Message {
	return command(VerbGoto, targetID, map[string]float64{"x": x, "y": y, "z": z})
}

// Rotate builds a rotate command to an absolute yaw in degrees.
func Rotate(targetID string, yaw float64) Message {
	return command(VerbRotate, targetID, map[string]float64{"yaw": yaw})
}

// Move builds a relative move command.
func Move(targetID string, dx, dy, dz float64) Message {
	return command(VerbMove, targetID, map[string]float64{"dx": dx, "dy": dy, "dz": dz})
}

// Error builds an error frame.
func Error(msg string) Message {
	return Message{Type: TypeError, Message: msg}
}

// CommandResponse builds an acknowledgment frame for a command verb.
func CommandResponse(verb Verb, msg string) Message {
	return Message{Type: TypeCommandResponse, Command: verb, Message: msg}
}

// InitialState builds the snapshot frame sent to a newly registered
// observer. The payload is marshaled by the caller.
func InitialState(data json.RawMessage) Message {
	return Message{Type: TypeInitialState, Data: data}
}

// Validate checks that a command frame is well formed. Non-command frames
// are accepted as-is.
func (m Message) Validate() error {
	if m.Type != TypeCommand {
		return nil
	}
	if m.TargetID == "" {
		return fmt.Errorf("command %q: missing target id", m.Command)
	}
	params, ok := requiredParams[m.Command]
	if !ok {
		return fmt.Errorf("unknown command verb %q", m.Command)
	}
	for _, p := range params {
		if _, present := m.Params[p]; !present {
			return fmt.Errorf("command %q: missing param %q", m.Command, p)
		}
	}
	return nil
}
