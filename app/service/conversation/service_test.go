package conversation

import (
	"meetassist/app/service/realtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLog(t *testing.T) *Service {
	t.Helper()

	s, err := New(nil)
	require.NoError(t, err)

	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	return s
}

func TestTranscriptAssembly(t *testing.T) {
	s := newLog(t)

	turn, sealed := s.ApplyTranscription(RoleUser, "Hello", false)
	assert.False(t, sealed)
	assert.Equal(t, "Hello", turn.Text)
	require.Equal(t, 1, s.Len())

	turn, sealed = s.ApplyTranscription(RoleUser, " world", true)
	assert.True(t, sealed)
	assert.Equal(t, "Hello world", turn.Text)
	require.Equal(t, 1, s.Len())
	assert.True(t, s.Turns()[0].IsFinal)

	s.ApplyTranscription(RoleUser, "Next", false)
	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "Next", turns[1].Text)
	assert.False(t, turns[1].IsFinal)
}

func TestRoleChangeSealsTail(t *testing.T) {
	s := newLog(t)

	s.ApplyTranscription(RoleUser, "Can you", false)
	s.ApplyTranscription(RoleAgent, "Sure", false)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.True(t, turns[0].IsFinal)
	assert.False(t, turns[1].IsFinal)

	nonFinal := 0
	for _, turn := range turns {
		if !turn.IsFinal {
			nonFinal++
		}
	}
	assert.Equal(t, 1, nonFinal)
}

func TestAddSealsTail(t *testing.T) {
	s := newLog(t)

	s.ApplyTranscription(RoleAgent, "Working on it", false)
	added := s.Add(Turn{Role: RoleSystem, Text: "note", IsFinal: true})

	assert.Equal(t, time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC), added.Timestamp)

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.True(t, turns[0].IsFinal)
}

func TestSealLast(t *testing.T) {
	s := newLog(t)

	_, ok := s.SealLast(RoleAgent)
	assert.False(t, ok)

	s.ApplyTranscription(RoleAgent, "Done", false)

	_, ok = s.SealLast(RoleUser)
	assert.False(t, ok)

	turn, ok := s.SealLast(RoleAgent)
	assert.True(t, ok)
	assert.Equal(t, "Done", turn.Text)

	_, ok = s.SealLast(RoleAgent)
	assert.False(t, ok)
}

func TestTurnsReturnsCopy(t *testing.T) {
	s := newLog(t)
	s.Add(Turn{Role: RoleUser, Text: "a", IsFinal: true})

	turns := s.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "a", s.Turns()[0].Text)

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "No recent messages", Format(nil))

	out := Format([]Turn{
		{Timestamp: time.Date(2026, 1, 1, 8, 5, 9, 0, time.UTC), Role: RoleUser, Text: "hi"},
		{Role: RoleAgent, Text: "hello"},
	})
	assert.Equal(t, "08:05:09 - user: hi\nnever - agent: hello\n", out)
}

func TestOnSeal(t *testing.T) {
	s := newLog(t)

	var sealed []string
	s.OnSeal(func(turn Turn) {
		sealed = append(sealed, string(turn.Role)+":"+turn.Text)
	})

	s.ApplyTranscription(RoleUser, "Hi", false)
	s.ApplyTranscription(RoleUser, " there", true)
	s.ApplyTranscription(RoleAgent, "Hello", false)
	s.ApplyTranscription(RoleUser, "Quick question", false)
	s.SealLast(RoleUser)
	s.Add(Turn{Role: RoleSystem, Text: "tool", IsFinal: true})

	assert.Equal(t, []string{
		"user:Hi there",
		"agent:Hello",
		"user:Quick question",
		"system:tool",
	}, sealed)
}

func TestAttachGrounding(t *testing.T) {
	s := newLog(t)

	assert.False(t, s.AttachGrounding([]realtime.GroundingSource{{URI: "https://example.com"}}))

	s.ApplyTranscription(RoleAgent, "According to the docs", false)
	require.True(t, s.AttachGrounding([]realtime.GroundingSource{{Title: "Docs", URI: "https://example.com"}}))

	s.SealLast(RoleAgent)
	assert.False(t, s.AttachGrounding([]realtime.GroundingSource{{Title: "Late", URI: "https://example.com/late"}}))

	s.ApplyTranscription(RoleUser, "Thanks", false)
	assert.False(t, s.AttachGrounding([]realtime.GroundingSource{{Title: "User", URI: "https://example.com/user"}}))

	turns := s.Turns()
	require.Len(t, turns[0].Grounding, 1)
	assert.Equal(t, "Docs", turns[0].Grounding[0].Title)
	assert.Empty(t, turns[1].Grounding)
}
