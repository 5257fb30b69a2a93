package message

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// Data is a value the engine reports either as UTF-8 text or, when the
// underlying content is not valid UTF-8, as raw bytes. Exactly one of the
// two forms is populated; the zero Data holds neither.
type Data struct {
	text  *string
	bytes []byte
}

// TextData returns a Data holding text.
func TextData(s string) Data {
	return Data{text: &s}
}

// BytesData returns a Data holding raw bytes.
func BytesData(b []byte) Data {
	if b == nil {
		b = []byte{}
	}
	return Data{bytes: b}
}

// Text returns the text form and whether it is populated.
func (d Data) Text() (string, bool) {
	if d.text == nil {
		return "", false
	}
	return *d.text, true
}

// Bytes returns the raw byte form and whether it is populated.
func (d Data) Bytes() ([]byte, bool) {
	if d.bytes == nil {
		return nil, false
	}
	return d.bytes, true
}

// IsText reports whether d holds text.
func (d Data) IsText() bool { return d.text != nil }

// IsBytes reports whether d holds raw bytes.
func (d Data) IsBytes() bool { return d.bytes != nil }

// IsZero reports whether d holds neither form.
func (d Data) IsZero() bool { return d.text == nil && d.bytes == nil }

// Raw returns the underlying bytes regardless of form. Submatch offsets
// index into this slice.
func (d Data) Raw() []byte {
	if d.text != nil {
		return []byte(*d.text)
	}
	return d.bytes
}

// String returns the text form, or the raw bytes converted verbatim.
func (d Data) String() string {
	if d.text != nil {
		return *d.text
	}
	return string(d.bytes)
}

// Valid reports whether the content is valid UTF-8.
func (d Data) Valid() bool {
	if d.text != nil {
		return true
	}
	return utf8.Valid(d.bytes)
}

type wireData struct {
	Text  *string `json:"text,omitempty"`
	Bytes *string `json:"bytes,omitempty"`
}

var errDataForm = errors.New("exactly one of text or bytes must be set")

// UnmarshalJSON decodes {"text": ...} or {"bytes": <base64>}.
func (d *Data) UnmarshalJSON(b []byte) error {
	var w wireData
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch {
	case w.Text != nil && w.Bytes == nil:
		*d = TextData(*w.Text)
	case w.Bytes != nil && w.Text == nil:
		raw, err := base64.StdEncoding.DecodeString(*w.Bytes)
		if err != nil {
			return err
		}
		*d = BytesData(raw)
	default:
		return errDataForm
	}
	return nil
}

// MarshalJSON encodes d in the engine's wire form. The zero Data encodes
// as null.
func (d Data) MarshalJSON() ([]byte, error) {
	switch {
	case d.text != nil:
		return json.Marshal(wireData{Text: d.text})
	case d.bytes != nil:
		enc := base64.StdEncoding.EncodeToString(d.bytes)
		return json.Marshal(wireData{Bytes: &enc})
	default:
		return []byte("null"), nil
	}
}

// MarshalYAML mirrors MarshalJSON for yaml encoders.
func (d Data) MarshalYAML() (interface{}, error) {
	switch {
	case d.text != nil:
		return map[string]string{"text": *d.text}, nil
	case d.bytes != nil:
		return map[string]string{"bytes": base64.StdEncoding.EncodeToString(d.bytes)}, nil
	default:
		return nil, nil
	}
}
