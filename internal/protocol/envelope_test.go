package protocol

import (
	"encoding/json"
	"testing"

	"github.com/quickchat/quickchat/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventCallUser, CallUser{
		UserToCall: "b",
		SignalData: json.RawMessage(`{"sdp":"x"}`),
		From:       "a",
		Name:       "Alice",
	})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, EventCallUser, decoded.Event)

	var p CallUser
	require.NoError(t, decoded.Decode(&p))
	assert.Equal(t, "b", p.UserToCall)
	assert.JSONEq(t, `{"sdp":"x"}`, string(p.SignalData))
}

func TestChatMessageDomainValidation(t *testing.T) {
	tests := []struct {
		name    string
		msg     ChatMessage
		wantErr bool
	}{
		{
			name: "text message",
			msg:  ChatMessage{Room: "lobby", Author: "Alice", Kind: "text", Body: "hi", Time: "10:15"},
		},
		{
			name: "kind defaults to text",
			msg:  ChatMessage{Room: "lobby", Author: "Alice", Body: "hi"},
		},
		{
			name: "image with data uri",
			msg:  ChatMessage{Room: "lobby", Author: "Alice", Kind: "image", Body: "data:image/png;base64,AAAA", MimeType: "image/png"},
		},
		{
			name:    "missing room",
			msg:     ChatMessage{Author: "Alice", Body: "hi"},
			wantErr: true,
		},
		{
			name:    "missing body",
			msg:     ChatMessage{Room: "lobby", Author: "Alice"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.msg.Domain()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, domain.ContentKind(""), m.Content.Kind)
			assert.Equal(t, tt.msg.Body, m.Content.Body)
		})
	}
}
