package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphbft/agreement"
	"graphbft/types"
)

type mockSession struct {
	closed    int
	delivered chan *types.Interpreted
}

func newMockSession() *mockSession {
	return &mockSession{delivered: make(chan *types.Interpreted)}
}

func (s *mockSession) Add(*types.BlockGraph) error          { return nil }
func (s *mockSession) Delivered() <-chan *types.Interpreted { return s.delivered }
func (s *mockSession) Close()                               { s.closed++ }

func TestSessionSetGetOrCreate(t *testing.T) {
	ss := NewSessionSet()
	first := newMockSession()

	session, created := ss.GetOrCreate(1, "AA", func() agreement.Session { return first })
	require.True(t, created)
	assert.Equal(t, first, session)

	session, created = ss.GetOrCreate(1, "AA", func() agreement.Session {
		t.Fatal("session created twice")
		return nil
	})
	assert.False(t, created)
	assert.Equal(t, first, session)

	_, created = ss.GetOrCreate(1, "BB", func() agreement.Session { return newMockSession() })
	assert.True(t, created)
	assert.Equal(t, 2, ss.Size())
}

func TestSessionSetMarkFed(t *testing.T) {
	ss := NewSessionSet()
	assert.False(t, ss.MarkFed(1, "AA", "id1"), "no session yet")

	ss.GetOrCreate(1, "AA", func() agreement.Session { return newMockSession() })
	assert.True(t, ss.MarkFed(1, "AA", "id1"))
	assert.False(t, ss.MarkFed(1, "AA", "id1"))
	assert.True(t, ss.MarkFed(1, "AA", "id2"))
}

func TestSessionSetPrune(t *testing.T) {
	ss := NewSessionSet()
	sessions := []*mockSession{newMockSession(), newMockSession(), newMockSession()}
	for i, s := range sessions {
		s := s
		ss.GetOrCreate(uint64(i+1), "AA", func() agreement.Session { return s })
	}
	assert.Equal(t, []uint64{1, 2, 3}, ss.Rounds())

	assert.Equal(t, 2, ss.Prune(3))
	assert.Equal(t, 1, sessions[0].closed)
	assert.Equal(t, 1, sessions[1].closed)
	assert.Equal(t, 0, sessions[2].closed)
	assert.Equal(t, []uint64{3}, ss.Rounds())

	ss.CloseAll()
	assert.Equal(t, 1, sessions[2].closed)
	assert.Equal(t, 0, ss.Size())
}
