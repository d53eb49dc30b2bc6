package protocol

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerMessageSerialization(t *testing.T) {
	cases := []struct {
		msg  ServerMessage
		want string
	}{
		{SrvPlaceChip{Column: 5}, "PC:5"},
		{SrvOpponentJoined{}, "OPP_JOINED"},
		{SrvOpponentLeaving{}, "OPP_LEAVING"},
		{SrvGameStart{YourTurn: true}, "GAME_START:YOU"},
		{SrvGameStart{YourTurn: false}, "GAME_START:OPP"},
		{SrvGameStart{YourTurn: true, OpponentUID: "0a1b2c3d4e5f"}, "GAME_START:YOU:0a1b2c3d4e5f"},
		{SrvGameOver{YouWon: true}, "GAME_OVER:YOU"},
		{SrvGameOver{YouWon: false}, "GAME_OVER:OPP"},
		{SrvLobbyClosing{}, "LOBBY_CLOSING"},
		{SrvOkay{}, "OKAY"},
		{SrvPong{}, "PONG"},
		{SrvReadyPing{}, "READY_PING"},
		{SrvError{}, "ERROR"},
		{SrvError{Kind: ErrLobbyNotFound}, "ERROR:LobbyNotFound"},
		{SrvError{Kind: ErrInvalidColumn}, "ERROR:InvalidColumn"},
		{SrvBattleRequest{FromUID: "0a1b2c3d4e5f", GameID: "ABCD"}, "BATTLE_REQ:0a1b2c3d4e5f:ABCD"},
		{SrvServerState{Connections: 12, PlayerWaiting: true}, "CURRENT_SERVER_STATE:12:true"},
		{SrvServerState{Connections: 0, PlayerWaiting: false}, "CURRENT_SERVER_STATE:0:false"},
		{SrvChatRead{ThreadID: "abc"}, "CHAT_READ:abc"},
		{SrvLobbyID{GameID: "QRST"}, "LOBBY_ID:QRST"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.msg.Serialize())
	}
}

func TestChatMessageSerialization(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString([]byte("gg wp"))
	msg := SrvChatMessage{
		ThreadID:  "thread1",
		Index:     4,
		Timestamp: 1700000000,
		FromUID:   "0a1b2c3d4e5f",
		Text:      "gg wp",
	}
	assert.Equal(t, "CHAT_MSG:thread1:4:1700000000:0a1b2c3d4e5f:"+b64, msg.Serialize())

	anon := SrvChatMessage{ThreadID: "thread1", Index: 5, Timestamp: 1700000001, Text: "hi"}
	assert.Equal(t, "CHAT_MSG:thread1:5:1700000001::"+
		base64.StdEncoding.EncodeToString([]byte("hi")), anon.Serialize())
}
