package gateway

import "github.com/brensch/snekarena/room"

// Inbound message types.
const (
	MsgJoinQuickMatch  = "joinQuickMatch"
	MsgCreateRoom      = "createRoom"
	MsgJoinRoom        = "joinRoom"
	MsgListRooms       = "listRooms"
	MsgUpdateDirection = "updateDirection"
	MsgAddBot          = "addBot"
	MsgLeaveRoom       = "leaveRoom"
)

// Outbound message types.
const (
	MsgJoined       = "joined"
	MsgRoomCreated  = "roomCreated"
	MsgJoinError    = "joinError"
	MsgRoomsList    = "roomsList"
	MsgSnapshot     = "snapshot"
	MsgStarted      = "started"
	MsgEnded        = "ended"
	MsgPlayerJoined = "playerJoined"
	MsgPlayerLeft   = "playerLeft"
)

type JoinQuickMatchRequest struct {
	PlayerName string `json:"playerName"`
}

type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	RoomName   string `json:"roomName"`
}

type JoinRoomRequest struct {
	PlayerName string `json:"playerName"`
	RoomCode   string `json:"roomCode"`
}

type DirectionRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type JoinedMessage struct {
	PlayerID string        `json:"playerId"`
	Snapshot room.Snapshot `json:"snapshot"`
	RoomInfo room.Info     `json:"roomInfo"`
}

type RoomCreatedMessage struct {
	Code     string    `json:"code"`
	RoomInfo room.Info `json:"roomInfo"`
}

type JoinErrorMessage struct {
	Reason string `json:"reason"`
}

type RoomsListMessage struct {
	Rooms []room.Info `json:"rooms"`
}

type EndedMessage struct {
	Winner string `json:"winner"`
}

type PlayerJoinedMessage struct {
	Name string `json:"name"`
}

type PlayerLeftMessage struct {
	ID string `json:"id"`
}
