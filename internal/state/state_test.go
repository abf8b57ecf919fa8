package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkflow(t *testing.T) {
	tests := []struct {
		in      string
		want    Workflow
		wantErr bool
	}{
		{"conversation", Conversation, false},
		{"image", Image, false},
		{"audio", Audio, false},
		{"video", Conversation, true},
		{"", Conversation, true},
		{"Image", Conversation, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWorkflow(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkflow_ZeroValueIsConversation(t *testing.T) {
	var w Workflow
	assert.Equal(t, Conversation, w)
	assert.Equal(t, "conversation", w.String())
}

func TestWorkflow_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		W Workflow `json:"w"`
	}{Audio})
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":"audio"}`, string(b))

	var out struct {
		W Workflow `json:"w"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"w":"dance"}`), &out))

	_, err = Workflow(9).MarshalText()
	assert.Error(t, err)
}

func TestTurnState_LastUserAndTail(t *testing.T) {
	s := New("t1")
	s.Append(Message{ID: "1", Role: RoleUser, Content: "hi"})
	s.Append(Message{ID: "2", Role: RoleAssistant, Content: "hello"})
	s.Append(Message{ID: "3", Role: RoleUser, Content: "draw me"})
	s.Append(Message{ID: "4", Role: RoleAssistant, Content: "done"})

	u, ok := s.LastUser()
	require.True(t, ok)
	assert.Equal(t, "3", u.ID)

	a, ok := s.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "4", a.ID)

	assert.Len(t, s.Tail(2), 2)
	assert.Equal(t, "3", s.Tail(2)[0].ID)
	assert.Len(t, s.Tail(10), 4)

	_, ok = New("empty").LastUser()
	assert.False(t, ok)
}

func TestTurnState_CloneIsDeep(t *testing.T) {
	s := &TurnState{
		ThreadID:    "t1",
		Messages:    []Message{{ID: "1", Role: RoleUser, Content: "hi", CreatedAt: time.Unix(0, 0).UTC()}},
		AudioBuffer: []byte{1, 2, 3},
	}
	c := s.Clone()
	assert.Empty(t, cmp.Diff(s, c))

	c.Messages[0].Content = "changed"
	c.AudioBuffer[0] = 9
	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, byte(1), s.AudioBuffer[0])
}

func TestTurnState_ResetTransient(t *testing.T) {
	s := &TurnState{
		ThreadID:        "t1",
		Summary:         "kept",
		Workflow:        Image,
		ImageRef:        "img.png",
		AudioBuffer:     []byte("x"),
		CurrentActivity: "sleeping",
		ApplyActivity:   true,
		MemoryContext:   "- likes cats",
	}
	s.ResetTransient()
	assert.Equal(t, &TurnState{ThreadID: "t1", Summary: "kept"}, s)
}

func TestTurnState_ReplyTo(t *testing.T) {
	s := New("t1")
	s.Append(Message{ID: "1", Role: RoleUser, Content: "hi"})
	s.Append(Message{ID: "2", Role: RoleAssistant, Content: "hello"})
	s.Append(Message{ID: "3", Role: RoleUser, Content: "still there?"})
	s.Append(Message{ID: "4", Role: RoleUser, Content: "hello?"})
	s.Append(Message{ID: "5", Role: RoleAssistant, Content: "yes"})

	assert.True(t, s.HasMessage("3"))
	assert.False(t, s.HasMessage("9"))

	reply, ok := s.ReplyTo("1")
	require.True(t, ok)
	assert.Equal(t, "2", reply.ID)

	_, ok = s.ReplyTo("3")
	assert.False(t, ok, "a later user message means 3 was never answered")

	reply, ok = s.ReplyTo("4")
	require.True(t, ok)
	assert.Equal(t, "5", reply.ID)

	_, ok = s.ReplyTo("2")
	assert.False(t, ok, "assistant ids are not replied to")
}

func TestTurnState_ReplayedIsNotPersisted(t *testing.T) {
	s := New("t1")
	s.Replayed = true
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "replayed")
	assert.NotContains(t, string(data), "Replayed")
}
