package presence

import (
	"fmt"
	"sync"
	"testing"

	"social_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	id     string
	mu     sync.Mutex
	pushed []domain.WSResponse
	closed bool
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeChannel) Push(resp domain.WSResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, resp)
	return nil
}

func TestLocalRouter_JoinResolveLeave(t *testing.T) {
	r := NewLocalRouter()
	c2 := &fakeChannel{id: "c2"}

	_, ok := r.Resolve("u2")
	assert.False(t, ok)

	assert.Nil(t, r.Join("u2", c2))
	got, ok := r.Resolve("u2")
	require.True(t, ok)
	assert.Equal(t, "c2", got.ID())
	assert.Equal(t, 1, r.Count())

	userID, removed := r.Leave(c2)
	assert.True(t, removed)
	assert.Equal(t, "u2", userID)
	_, ok = r.Resolve("u2")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestLocalRouter_OverwriteAndStaleLeave(t *testing.T) {
	r := NewLocalRouter()
	c1 := &fakeChannel{id: "channel1"}
	c2 := &fakeChannel{id: "channel2"}

	assert.Nil(t, r.Join("U", c1))
	superseded := r.Join("U", c2)
	require.NotNil(t, superseded)
	assert.Equal(t, "channel1", superseded.ID())

	got, ok := r.Resolve("U")
	require.True(t, ok)
	assert.Equal(t, "channel2", got.ID())

	// channel1 已過期, leave 不影響現有對應
	_, removed := r.Leave(c1)
	assert.False(t, removed)
	got, ok = r.Resolve("U")
	require.True(t, ok)
	assert.Equal(t, "channel2", got.ID())
}

func TestLocalRouter_RejoinSameChannel(t *testing.T) {
	r := NewLocalRouter()
	c1 := &fakeChannel{id: "c1"}

	assert.Nil(t, r.Join("U", c1))
	assert.Nil(t, r.Join("U", c1))
	assert.Equal(t, 1, r.Count())
}

func TestLocalRouter_ChannelSwitchesIdentity(t *testing.T) {
	r := NewLocalRouter()
	c1 := &fakeChannel{id: "c1"}

	r.Join("a", c1)
	r.Join("b", c1)

	_, ok := r.Resolve("a")
	assert.False(t, ok)
	got, ok := r.Resolve("b")
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID())

	userID, removed := r.Leave(c1)
	assert.True(t, removed)
	assert.Equal(t, "b", userID)
}

func TestLocalRouter_LeaveUnknown(t *testing.T) {
	r := NewLocalRouter()
	_, removed := r.Leave(&fakeChannel{id: "never"})
	assert.False(t, removed)
}

func TestLocalRouter_Concurrent(t *testing.T) {
	r := NewLocalRouter()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			ch := &fakeChannel{id: fmt.Sprintf("c%d", i)}
			r.Join(user, ch)
			r.Resolve(user)
			if i%2 == 0 {
				r.Leave(ch)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Count(), 5)
	for i := 0; i < 5; i++ {
		if ch, ok := r.Resolve(fmt.Sprintf("u%d", i)); ok {
			assert.NotEmpty(t, ch.ID())
		}
	}
}
