package events

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamp_DoesNotOverwrite(t *testing.T) {
	e := End("classifier-conv", "")
	e.Stamp("chunk-conv", "chunk-req")

	assert.Equal(t, "classifier-conv", e.ConversationID)
	assert.Equal(t, "chunk-req", e.RequestID)
}

func TestStamp_IgnoresEmptyValues(t *testing.T) {
	e := Text("hi")
	e.Stamp("", "")
	assert.Empty(t, e.ConversationID)
	assert.Empty(t, e.RequestID)
}

func TestStampProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("stamping twice equals stamping once", prop.ForAll(
		func(conv, req string) bool {
			once := []Event{Text("a"), SQL("q")}
			twice := []Event{Text("a"), SQL("q")}
			StampAll(once, conv, req)
			StampAll(StampAll(twice, conv, req), conv, req)
			for i := range once {
				if !reflect.DeepEqual(once[i], twice[i]) {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("preset ids survive stamping", prop.ForAll(
		func(preset, conv string) bool {
			if preset == "" {
				return true
			}
			e := End(preset, preset)
			e.Stamp(conv, conv)
			return e.ConversationID == preset && e.RequestID == preset
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestEventJSONShape(t *testing.T) {
	tests := []struct {
		name string
		in   Event
		want string
	}{
		{"text", Text("hello"), `{"type":"text","text":"hello"}`},
		{"image", Image("u", "c"), `{"type":"image","image_url":"u","caption":"c"}`},
		{"sql", SQL("SELECT 1"), `{"type":"sql","query":"SELECT 1"}`},
		{"error", Error("bad"), `{"type":"error","error":"bad"}`},
		{"empty end", End("", ""), `{"type":"end"}`},
		{"end", End("c", "r"), `{"type":"end","conversation_id":"c","request_id":"r"}`},
		{
			"buttons",
			Buttons("Pick", []Button{{Label: "Go", Action: "go"}}),
			`{"type":"buttons","text":"Pick","buttons":[{"label":"Go","action":"go","disabled":false}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestFilter(t *testing.T) {
	in := []Event{Text("a"), SQL("q"), Error("e"), End("c", "")}

	assert.Equal(t, in, NewFilter(nil).Apply(in))

	got := NewFilter([]string{"SQL", " "}).Apply(in)
	require.Len(t, got, 2)
	assert.Equal(t, TypeSQL, got[0].Type)
	assert.Equal(t, TypeEnd, got[1].Type)
}
