package aigc

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role of a turn owner
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label returns the role as shown in a prompt, like "User"
func (r Role) Label() string {
	// a Caser is stateful, not shared
	return cases.Title(language.English).String(string(r))
}

// Turn one message of a conversation
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z *Turn) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself. for redis result.Scan
func (z *Turn) UnmarshalBinary(data []byte) error {
	var t Turn
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}

// Turns is the ordered history of a session
type Turns []Turn

// Window returns the last k turns, shares the backing array
func (z Turns) Window(k int) Turns {
	if k <= 0 || len(z) == 0 {
		return nil
	}
	if len(z) <= k {
		return z
	}
	return z[len(z)-k:]
}

// Render lines as "Role: content"
func (z Turns) Render() string {
	if len(z) == 0 {
		return ""
	}
	lines := make([]string, 0, len(z))
	for _, t := range z {
		lines = append(lines, t.Role.Label()+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// Pending the last turn is a user turn still waiting for an answer
func (z Turns) Pending() bool {
	return len(z) > 0 && z[len(z)-1].Role == RoleUser
}

// With returns a copy with more turns appended
func (z Turns) With(turns ...Turn) Turns {
	out := make(Turns, 0, len(z)+len(turns))
	out = append(out, z...)
	return append(out, turns...)
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z Turns) MarshalBinary() (data []byte, err error) {
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself.
func (z *Turns) UnmarshalBinary(data []byte) error {
	var t Turns
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}
