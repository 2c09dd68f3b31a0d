package store

import (
	"github.com/brensch/snekarena/room"
)

// MatchSchema is written into the key/value metadata of every archive file.
const MatchSchema = "match_row_v1"

// MatchRow is one finished match.
//
// Players are stored nested, in join order. Times are unix milliseconds.
type MatchRow struct {
	MatchID   string `parquet:"match_id" json:"matchId"`
	RoomID    string `parquet:"room_id,dict" json:"roomId"`
	RoomCode  string `parquet:"room_code,dict" json:"roomCode,omitempty"`
	RoomName  string `parquet:"room_name,dict" json:"roomName"`
	IsPrivate bool   `parquet:"is_private" json:"isPrivate"`
	Width     int32  `parquet:"width" json:"width"`
	Height    int32  `parquet:"height" json:"height"`
	GridSize  int32  `parquet:"grid_size" json:"gridSize"`
	StartedMs int64  `parquet:"started_ms" json:"startedAt"`
	EndedMs   int64  `parquet:"ended_ms" json:"endedAt"`
	Winner    string `parquet:"winner" json:"winner"`
	Reason    string `parquet:"reason,dict" json:"reason"`

	Players []PlayerRow `parquet:"players" json:"players"`
}

type PlayerRow struct {
	ID     string `parquet:"id" json:"id"`
	Name   string `parquet:"name" json:"name"`
	IsBot  bool   `parquet:"is_bot" json:"isBot"`
	Score  int32  `parquet:"score" json:"score"`
	Length int32  `parquet:"length" json:"length"`
	Alive  bool   `parquet:"alive" json:"alive"`
}

// RowFromResult flattens a match result into an archive row.
func RowFromResult(res room.MatchResult) MatchRow {
	row := MatchRow{
		MatchID:   res.MatchID,
		RoomID:    res.Room.ID,
		RoomCode:  res.Room.Code,
		RoomName:  res.Room.Name,
		IsPrivate: res.Room.IsPrivate,
		Width:     int32(res.Room.Settings.Width),
		Height:    int32(res.Room.Settings.Height),
		GridSize:  int32(res.Room.Settings.GridSize),
		StartedMs: res.StartedAt.UnixMilli(),
		EndedMs:   res.EndedAt.UnixMilli(),
		Winner:    res.Winner,
		Reason:    string(res.Reason),
		Players:   make([]PlayerRow, 0, len(res.Players)),
	}
	for _, p := range res.Players {
		row.Players = append(row.Players, PlayerRow{
			ID:     p.ID,
			Name:   p.Name,
			IsBot:  p.IsBot,
			Score:  int32(p.Score),
			Length: int32(p.Length),
			Alive:  p.Alive,
		})
	}
	return row
}
