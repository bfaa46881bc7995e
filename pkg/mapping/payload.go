package mapping

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Payload is an opaque byte sequence. It serializes as {"text": ...} when the
// bytes are valid UTF-8 and as {"base64": ...} otherwise.
type Payload []byte

type payloadWire struct {
	Text   *string `json:"text,omitempty" yaml:"text,omitempty"`
	Base64 string  `json:"base64,omitempty" yaml:"base64,omitempty"`
}

var errPayloadAmbiguous = errors.New("payload: text and base64 are mutually exclusive")

func (p Payload) wire() payloadWire {
	if utf8.Valid(p) {
		s := string(p)
		return payloadWire{Text: &s}
	}
	return payloadWire{Base64: base64.StdEncoding.EncodeToString(p)}
}

func (p *Payload) fromWire(w payloadWire) error {
	if w.Text != nil && w.Base64 != "" {
		return errPayloadAmbiguous
	}
	if w.Text != nil {
		*p = Payload(*w.Text)
		return nil
	}
	if w.Base64 == "" {
		*p = nil
		return nil
	}
	b, err := base64.StdEncoding.DecodeString(w.Base64)
	if err != nil {
		return err
	}
	*p = b
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.wire())
}

// UnmarshalJSON implements json.Unmarshaler. A bare JSON string is accepted
// as text for hand-written mapping files.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Payload(s)
		return nil
	}
	var w payloadWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return p.fromWire(w)
}

// MarshalYAML implements yaml.Marshaler.
func (p Payload) MarshalYAML() (interface{}, error) {
	return p.wire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. A scalar is accepted as text.
func (p *Payload) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*p = Payload(value.Value)
		return nil
	}
	var w payloadWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	return p.fromWire(w)
}
