// internal/ws/lobby_test.go
package ws

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fourrow/server/internal/models"
)

func TestMatchHandshake(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	// Exactly one side starts with the turn.
	assert.Equal(t, "GAME_START:YOU", mover.waitPayload("GAME_START:"))
	assert.Equal(t, "GAME_START:OPP", other.waitPayload("GAME_START:"))
}

func TestPrivateLobbyJoinByID(t *testing.T) {
	env := newTestEnv(t, testConfig())

	// A legacy host is the one client that learns the lobby id from
	// the wire.
	host := env.connectLegacy(t)
	joiner := env.connect(t)

	host.send("REQ_LOBBY")
	lobbyID := strings.TrimPrefix(host.waitRaw("LOBBY_ID:"), "LOBBY_ID:")
	require.Len(t, lobbyID, 4)

	joiner.send("JOIN_LOBBY:" + lobbyID)
	joiner.waitPayload("OKAY")

	host.waitRaw("OPP_JOINED")
	host.waitRaw("READY_PING")
	host.send("READY_PONG")

	host.waitRaw("GAME_START:")
	joiner.waitPayload("GAME_START:")
}

func TestJoinUnknownLobby(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.connect(t)

	c.send("JOIN_LOBBY:QQQQ")
	c.waitPayload("ERROR:LobbyNotFound")

	// The failed join doesn't leave the session stuck.
	c.send("REQ_LOBBY")
	c.waitPayload("OKAY")
}

func TestThirdPlayerRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	host := env.connectLegacy(t)
	joiner := env.connect(t)
	third := env.connect(t)

	host.send("REQ_LOBBY")
	lobbyID := strings.TrimPrefix(host.waitRaw("LOBBY_ID:"), "LOBBY_ID:")

	joiner.send("JOIN_LOBBY:" + lobbyID)
	joiner.waitPayload("OKAY")

	third.send("JOIN_LOBBY:" + lobbyID)
	third.waitPayload("ERROR:LobbyFull")

	// The rejected session is idle again and can host its own lobby.
	okays := countPrefix(third.payloads(), "OKAY")
	third.send("REQ_LOBBY")
	third.waitPayloadN("OKAY", okays+1)
}

func TestMovesAreRelayedAndTurnEnforced(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	// Moving out of turn is rejected without touching the board.
	other.send("PC:0")
	other.waitPayload("ERROR:NotYourTurn")

	mover.send("PC:3")
	other.waitPayload("PC:3")

	// Now the turn has flipped.
	other.send("PC:4")
	mover.waitPayload("PC:4")
	mover.expectNoPayload("ERROR:", 50*time.Millisecond)
}

func TestInvalidColumnRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	mover.send("PC:9")
	mover.waitPayload("ERROR:InvalidColumn")
	other.expectNoPayload("PC:", 50*time.Millisecond)
}

func TestMoveBeforeStartRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	host := env.connect(t)

	host.send("REQ_LOBBY")
	host.waitPayload("OKAY")

	// Still waiting for an opponent.
	host.send("PC:0")
	host.waitPayload("ERROR:NotInLobby")
}

func TestVerticalWinEndsGame(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	playVerticalWin(t, mover, other)

	mover.waitPayload("GAME_OVER:YOU")
	other.waitPayload("GAME_OVER:OPP")

	// No further moves once the game is decided.
	other.send("PC:2")
	other.waitPayload("ERROR:GameNotStarted")

	// Anonymous players never hit the ranked recorder.
	assert.Empty(t, env.dir.recorded())
}

func TestRematchNeedsBothVotes(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)
	playVerticalWin(t, mover, other)
	mover.waitPayload("GAME_OVER:YOU")
	other.waitPayload("GAME_OVER:OPP")

	okays := countPrefix(mover.payloads(), "OKAY")
	mover.send("PLAY_AGAIN")
	mover.waitPayloadN("OKAY", okays+1)

	// One vote isn't enough.
	time.Sleep(100 * time.Millisecond)
	mover.ackAll()
	assert.Equal(t, 1, countPrefix(mover.payloads(), "GAME_START:"))

	other.send("PLAY_AGAIN")
	mover.waitPayloadN("GAME_START:", 2)
	other.waitPayloadN("GAME_START:", 2)
}

func TestRematchBeforeGameOverRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, _ := startMatch(t, env)

	mover.send("PLAY_AGAIN")
	mover.waitPayload("ERROR:GameNotOver")
}

func TestLeaveClosesLobby(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	okays := countPrefix(other.payloads(), "OKAY")
	other.send("LEAVE")
	other.waitPayloadN("OKAY", okays+1)

	mover.waitPayload("OPP_LEAVING")
	mover.waitPayload("LOBBY_CLOSING")
	other.waitPayload("LOBBY_CLOSING")

	// Both sides are free again.
	moverOkays := countPrefix(mover.payloads(), "OKAY")
	mover.send("REQ_LOBBY")
	mover.waitPayloadN("OKAY", moverOkays+1)
	otherOkays := countPrefix(other.payloads(), "OKAY")
	other.send("REQ_LOBBY")
	other.waitPayloadN("OKAY", otherOkays+1)
}

func TestDisconnectClosesLobby(t *testing.T) {
	cfg := testConfig()
	cfg.DisconnectGrace = 50 * time.Millisecond
	cfg.SweepInterval = 10 * time.Millisecond
	env := newTestEnv(t, cfg)
	mover, other := startMatch(t, env)

	// The opponent vanishes and never comes back; once the grace runs
	// out the survivor learns about it.
	other.adapter.SocketClosed(other.currentWriter())

	mover.waitPayload("OPP_LEAVING")
	mover.waitPayload("LOBBY_CLOSING")
}

func TestReadyTimeoutClosesLobby(t *testing.T) {
	cfg := testConfig()
	cfg.ReadyTimeout = 80 * time.Millisecond
	env := newTestEnv(t, cfg)
	host := env.connect(t)
	joiner := env.connect(t)

	host.send("REQ_WW")
	host.waitPayload("OKAY")

	joiner.send("REQ_WW")
	joiner.waitPayload("OKAY")
	host.waitPayload("READY_PING")

	// The host never answers; the joiner is told the lobby is gone.
	joiner.waitPayload("ERROR:LobbyNotFound")
	joiner.waitPayload("LOBBY_CLOSING")
	host.waitPayload("LOBBY_CLOSING")
}

func TestPublicMatchConsumesOpenSlot(t *testing.T) {
	env := newTestEnv(t, testConfig())
	a := env.connect(t)
	b := env.connect(t)
	c := env.connect(t)
	d := env.connect(t)

	a.send("REQ_WW")
	a.waitPayload("OKAY")
	b.send("REQ_WW")
	b.waitPayload("OKAY")
	a.waitPayload("OPP_JOINED")

	// The slot is consumed; the next worldwide request hosts a fresh
	// lobby and the one after that matches with it, not with a or b.
	c.send("REQ_WW")
	c.waitPayload("OKAY")
	d.send("REQ_WW")
	d.waitPayload("OKAY")
	c.waitPayload("OPP_JOINED")
}

func TestLobbyChatIsRelayedToOpponentOnly(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	text := base64.StdEncoding.EncodeToString([]byte("good luck"))
	mover.send("CHAT_MSG:" + text)

	got := other.waitPayload("CHAT_MSG:")
	parts := strings.Split(got, ":")
	require.Len(t, parts, 6)
	assert.NotEqual(t, models.GlobalChatThreadID, parts[1])
	assert.Equal(t, "1", parts[2])
	assert.Equal(t, "", parts[4], "anonymous sender has no uid")
	assert.Equal(t, text, parts[5])

	mover.expectNoPayload("CHAT_MSG:", 50*time.Millisecond)

	// The message went into the lobby's own thread.
	msgs := env.archive.byThread(parts[1])
	require.Len(t, msgs, 1)
	assert.Equal(t, "good luck", msgs[0].Content)
	assert.Nil(t, msgs[0].SenderID)
}

func TestLobbyChatReadRelayed(t *testing.T) {
	env := newTestEnv(t, testConfig())
	mover, other := startMatch(t, env)

	mover.send("CHAT_READ")
	got := other.waitPayload("CHAT_READ:")
	assert.NotEqual(t, "CHAT_READ:"+models.GlobalChatThreadID, got)
}

func TestRankedMatchRecordsResult(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.dir.addUser("tok-a", "aaaabbbbcccc", "alice")
	env.dir.addUser("tok-b", "ddddeeeeffff", "bob")

	a := env.connect(t)
	b := env.connect(t)
	a.send("LOGIN:tok-a")
	a.waitPayload("OKAY")
	b.send("LOGIN:tok-b")
	b.waitPayload("OKAY")

	a.send("BATTLE_REQ:ddddeeeeffff")
	a.waitPayloadN("OKAY", 2)

	invite := b.waitPayload("BATTLE_REQ:")
	parts := strings.Split(invite, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "aaaabbbbcccc", parts[1])
	gameID := parts[2]
	require.Len(t, gameID, 4)

	b.send("JOIN_LOBBY:" + gameID)
	b.waitPayloadN("OKAY", 2)

	a.waitPayload("READY_PING")
	a.send("READY_PONG")

	aStart := a.waitPayload("GAME_START:")
	bStart := b.waitPayload("GAME_START:")

	// Ranked starts carry the opponent's uid.
	assert.True(t, strings.HasSuffix(aStart, ":ddddeeeeffff"), "got %q", aStart)
	assert.True(t, strings.HasSuffix(bStart, ":aaaabbbbcccc"), "got %q", bStart)

	mover, other := a, b
	winnerUID, loserUID := "aaaabbbbcccc", "ddddeeeeffff"
	if strings.HasPrefix(bStart, "GAME_START:YOU") {
		mover, other = b, a
		winnerUID, loserUID = loserUID, winnerUID
	}

	playVerticalWin(t, mover, other)
	mover.waitPayload("GAME_OVER:YOU")
	other.waitPayload("GAME_OVER:OPP")

	require.Eventually(t, func() bool {
		return len(env.dir.recorded()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, [2]string{winnerUID, loserUID}, env.dir.recorded()[0])
}

func TestBattleRequestGuards(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.dir.addUser("tok-a", "aaaabbbbcccc", "alice")

	c := env.connect(t)

	// Must be logged in first.
	c.send("BATTLE_REQ:ddddeeeeffff")
	c.waitPayload("ERROR:NotLoggedIn")

	c.send("LOGIN:tok-a")
	c.waitPayload("OKAY")

	// The target has to be online.
	c.send("BATTLE_REQ:ddddeeeeffff")
	c.waitPayload("ERROR:UserNotPlaying")
}

func TestLoginGuards(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.connect(t)

	c.send("LOGIN:bogus")
	c.waitPayload("ERROR:IncorrectCredentials")

	// Logging out while not logged in is still acknowledged.
	c.send("LOGOUT")
	c.waitPayload("OKAY")
}

func TestLoginDirectoryOutageIsInternal(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.dir.failAuth(errors.New("directory unavailable"))
	c := env.connect(t)

	// A backend failure is not the client's fault and must not read
	// as a bad token.
	c.send("LOGIN:tok")
	c.waitPayload("ERROR:Internal")

	// The session survives the outage and can log in once the
	// directory recovers.
	env.dir.failAuth(nil)
	env.dir.addUser("tok", "aaaabbbbcccc", "alice")
	c.send("LOGIN:tok")
	c.waitPayload("OKAY")
}

func TestDoubleLobbyRequestRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.connect(t)

	c.send("REQ_LOBBY")
	c.waitPayload("OKAY")
	c.send("REQ_LOBBY")
	c.waitPayload("ERROR:AlreadyInLobby")
}

func TestLeaveWhileIdleRejected(t *testing.T) {
	env := newTestEnv(t, testConfig())
	c := env.connect(t)

	c.send("LEAVE")
	c.waitPayload("ERROR:NotInLobby")
}
