package message

import (
	"encoding/json"
	"testing"
)

func TestData_Forms(t *testing.T) {
	text := TextData("abc")
	if !text.IsText() || text.IsBytes() || text.IsZero() {
		t.Errorf("TextData flags wrong: %+v", text)
	}
	if s, ok := text.Text(); !ok || s != "abc" {
		t.Errorf("Text() = %q, %v", s, ok)
	}
	if _, ok := text.Bytes(); ok {
		t.Error("Bytes() should be absent on text data")
	}

	bin := BytesData([]byte{0xff, 0x00})
	if bin.IsText() || !bin.IsBytes() {
		t.Errorf("BytesData flags wrong: %+v", bin)
	}
	if _, ok := bin.Text(); ok {
		t.Error("Text() should be absent on byte data")
	}

	empty := TextData("")
	if !empty.IsText() || empty.IsZero() {
		t.Error("empty text is still populated text")
	}

	var zero Data
	if !zero.IsZero() {
		t.Error("zero Data should report IsZero")
	}
}

func TestData_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data Data
		want string
	}{
		{"text", TextData("hi"), `{"text":"hi"}`},
		{"empty text", TextData(""), `{"text":""}`},
		{"bytes", BytesData([]byte("hi")), `{"bytes":"aGk="}`},
		{"zero", Data{}, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.data)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestData_MarshalYAML(t *testing.T) {
	v, err := BytesData([]byte("hi")).MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	m, ok := v.(map[string]string)
	if !ok || m["bytes"] != "aGk=" {
		t.Errorf("MarshalYAML() = %#v", v)
	}
}
