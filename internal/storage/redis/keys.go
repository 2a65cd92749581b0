package redis

import (
	"fmt"

	"github.com/mcoot/holdem-lobby/internal/model"
)

// Key prefix for all lobby-related data
const keyPrefix = "holdem"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// sessionKey returns the Redis key for a SessionRecord
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// joinCodeKey returns the Redis key holding the session id a code points at
func joinCodeKey(code model.JoinCode) string {
	return fmt.Sprintf("%s:code:%s", keyPrefix, code)
}
