package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lemunozm/asciiarena-sub000/internal/transport"
)

func newTestRoom(capacity int) *Room {
	return NewRoom(capacity, rand.New(rand.NewSource(1)), zap.NewNop())
}

func tcpEndpoint(id uint64) transport.Endpoint {
	return transport.Endpoint{ID: id, Kind: transport.Tcp}
}

func udpEndpoint(id uint64) transport.Endpoint {
	return transport.Endpoint{ID: id, Kind: transport.Udp}
}

func TestRoom_LoginCreatesUntilFull(t *testing.T) {
	r := newTestRoom(2)

	res := r.Login("A", tcpEndpoint(1))
	require.Equal(t, LoginCreated, res.Code)
	require.NotZero(t, res.Token)

	res = r.Login("B", tcpEndpoint(2))
	require.Equal(t, LoginCreated, res.Code)

	res = r.Login("C", tcpEndpoint(3))
	assert.Equal(t, LoginFull, res.Code)
	assert.Equal(t, 2, r.Len())
}

func TestRoom_LoginSameNameWhileConnected(t *testing.T) {
	r := newTestRoom(2)
	r.Login("A", tcpEndpoint(1))

	res := r.Login("A", tcpEndpoint(2))
	assert.Equal(t, LoginAlreadyLogged, res.Code)
	assert.Equal(t, 1, r.Len())
}

func TestRoom_RecycleKeepsOriginalToken(t *testing.T) {
	r := newTestRoom(2)
	first := r.Login("A", tcpEndpoint(1))
	require.Equal(t, LoginCreated, first.Code)

	r.Disconnect(first.Token)
	require.False(t, r.ByToken(first.Token).Connected())

	again := r.Login("A", tcpEndpoint(5))
	require.Equal(t, LoginRecycled, again.Code)
	assert.Equal(t, first.Token, again.Token)
	assert.True(t, r.ByToken(first.Token).Connected())
	// Recycling must not consume a second slot.
	assert.Equal(t, 1, r.Len())
}

func TestRoom_DisconnectClearsEndpointsAndTrust(t *testing.T) {
	r := newTestRoom(1)
	res := r.Login("A", tcpEndpoint(1))
	require.True(t, r.SetUntrustedFast(res.Token, udpEndpoint(9)))
	r.TrustFast(res.Token)

	r.Disconnect(res.Token)

	s := r.ByToken(res.Token)
	require.NotNil(t, s)
	assert.Nil(t, s.Safe)
	assert.Nil(t, s.Fast)
	assert.False(t, s.FastTrusted)
}

func TestRoom_RemoveByEndpointFreesSlot(t *testing.T) {
	r := newTestRoom(1)
	r.Login("A", tcpEndpoint(1))

	removed := r.RemoveByEndpoint(tcpEndpoint(1))
	require.NotNil(t, removed)
	assert.Equal(t, "A", removed.Name)
	assert.Equal(t, 0, r.Len())

	res := r.Login("B", tcpEndpoint(2))
	assert.Equal(t, LoginCreated, res.Code)
}

func TestRoom_ByEndpointMatchesEitherChannel(t *testing.T) {
	r := newTestRoom(1)
	res := r.Login("A", tcpEndpoint(1))
	r.SetUntrustedFast(res.Token, udpEndpoint(9))

	require.NotNil(t, r.ByEndpoint(tcpEndpoint(1)))
	require.NotNil(t, r.ByEndpoint(udpEndpoint(9)))
	assert.Nil(t, r.ByEndpoint(tcpEndpoint(42)))
}

func TestRoom_FasterEndpointsRequireTrust(t *testing.T) {
	r := newTestRoom(2)
	a := r.Login("A", tcpEndpoint(1))
	r.Login("B", tcpEndpoint(2))

	// Untrusted fast endpoint: both players still reached via safe.
	r.SetUntrustedFast(a.Token, udpEndpoint(9))
	assert.ElementsMatch(t,
		[]transport.Endpoint{tcpEndpoint(1), tcpEndpoint(2)},
		r.FasterEndpoints())

	// After the handshake the fast endpoint replaces the safe one.
	r.TrustFast(a.Token)
	assert.ElementsMatch(t,
		[]transport.Endpoint{udpEndpoint(9), tcpEndpoint(2)},
		r.FasterEndpoints())
}

func TestRoom_FasterEndpointsExcludeFullyDisconnected(t *testing.T) {
	r := newTestRoom(2)
	a := r.Login("A", tcpEndpoint(1))
	r.Login("B", tcpEndpoint(2))

	r.Disconnect(a.Token)
	assert.ElementsMatch(t, []transport.Endpoint{tcpEndpoint(2)}, r.FasterEndpoints())
	assert.ElementsMatch(t, []transport.Endpoint{tcpEndpoint(2)}, r.SafeEndpoints())
}

func TestRoom_SetUntrustedFastUnknownTokenIsNoop(t *testing.T) {
	r := newTestRoom(1)
	assert.False(t, r.SetUntrustedFast(Token(12345), udpEndpoint(1)))
}

func TestRoom_TokensAreUniqueAndNonZero(t *testing.T) {
	r := newTestRoom(26)
	seen := make(map[Token]bool)
	for i := 0; i < 26; i++ {
		res := r.Login(string(rune('A'+i)), tcpEndpoint(uint64(i)))
		require.Equal(t, LoginCreated, res.Code)
		require.NotZero(t, res.Token)
		assert.False(t, seen[res.Token])
		seen[res.Token] = true
	}
}
