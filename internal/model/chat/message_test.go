package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCustomResponseKeepsItsShape(t *testing.T) {
	mapping := ResponseMapping{
		"oi":      PlainResponse("Olá!"),
		"horario": StructuredResponse("9h às 18h", Action{Label: "Atendente", Action: "atendente"}),
	}

	data, err := json.Marshal(mapping)
	require.NoError(t, err)
	assert.JSONEq(t, `{"oi":"Olá!","horario":{"text":"9h às 18h","actions":[{"label":"Atendente","action":"atendente"}]}}`, string(data))

	var back ResponseMapping
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, mapping, back)
}

func TestCustomResponseAcceptsLegacyButtons(t *testing.T) {
	var resp CustomResponse
	require.NoError(t, json.Unmarshal([]byte(`{"text":"Oi","buttons":[{"text":"Menu","action":"menu"}]}`), &resp))

	assert.True(t, resp.Structured)
	assert.Equal(t, []Action{{Label: "Menu", Action: "menu"}}, resp.Actions)
}

func TestCustomResponseRejectsNumbers(t *testing.T) {
	var resp CustomResponse
	assert.Error(t, json.Unmarshal([]byte(`42`), &resp))
}

func TestMessageDecodesLegacyRecord(t *testing.T) {
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","text":"oi","time":"10:00","buttons":[{"text":"A","action":"a"}]}`), &msg))

	assert.Equal(t, KindText, msg.Kind)
	assert.Equal(t, OriginAgent, msg.Origin)
	assert.Equal(t, []Action{{Label: "A", Action: "a"}}, msg.Actions)
}

func TestMessageDecodesPortugueseRecord(t *testing.T) {
	src := `[
		{"id":"1","texto":"olá","hora":"10:00","origem":"usuario","tipo":"texto","dataUrl":null},
		{"id":"2","texto":"","hora":"10:01","origem":"agente","tipo":"imagem","dataUrl":"data:image/png;base64,AAAA"}
	]`
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(src), &msgs))

	assert.Equal(t, []Message{
		{ID: "1", Text: "olá", Time: "10:00", Origin: OriginUser, Kind: KindText},
		{ID: "2", Time: "10:01", Origin: OriginAgent, Kind: KindImage, ImagePayload: "data:image/png;base64,AAAA"},
	}, msgs)
}

func TestMessageNormalizedMatchesDecoding(t *testing.T) {
	msg := Message{ID: "x", Text: "oi", Actions: []Action{}}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	var back Message
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, msg.Normalized(), back)
	assert.Nil(t, back.Actions)
}

func TestCustomResponseFromYAML(t *testing.T) {
	src := `
oi: Olá!
horario:
  text: 9h às 18h
  actions:
    - label: Atendente
      action: atendente
`
	var mapping ResponseMapping
	require.NoError(t, yaml.Unmarshal([]byte(src), &mapping))

	assert.Equal(t, PlainResponse("Olá!"), mapping["oi"])
	assert.Equal(t, StructuredResponse("9h às 18h", Action{Label: "Atendente", Action: "atendente"}), mapping["horario"])
}
