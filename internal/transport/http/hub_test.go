package http

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redxsmoke/riddleofthedaydev/internal/domain"
)

func TestHubDropsOldestForSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c, unregister := hub.register("u1")
	defer unregister()

	for i := 0; i < clientBuffer+4; i++ {
		hub.RoundOpened(context.Background(), domain.RoundOpened{RoundID: string(rune('a' + i))})
	}
	require.Len(t, c.send, clientBuffer)
	first := <-c.send
	assert.Equal(t, string(rune('a'+4)), first.Payload.(domain.RoundOpened).RoundID)
}

func TestHubRoutesGuessResultsToOwner(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	alice, unregA := hub.register("alice")
	defer unregA()
	bob, unregB := hub.register("bob")
	defer unregB()

	hub.GuessResult(context.Background(), domain.GuessResult{UserID: "bob", Outcome: domain.OutcomeCorrect})
	assert.Len(t, alice.send, 0)
	require.Len(t, bob.send, 1)
	assert.Equal(t, "guessResult", (<-bob.send).Type)
}

func TestHubHidesAnswerOnOpen(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c, unregister := hub.register("u1")
	hub.RoundOpened(context.Background(), domain.RoundOpened{Riddle: domain.Riddle{Question: "Q?", Answer: "secret"}})
	msg := <-c.send
	assert.Empty(t, msg.Payload.(domain.RoundOpened).Riddle.Answer)

	unregister()
	unregister()
	assert.Equal(t, 0, hub.Clients())
	// Broadcasting after unregister must not panic on the closed channel.
	hub.PoolExhausted(context.Background())
}
