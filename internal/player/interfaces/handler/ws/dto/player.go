package dto

type PlayerReq struct {
	PlayerID string `json:"player_id"`
}

type PlayerStateResp struct {
	PlayerID   string `json:"player_id"`
	State      string `json:"state"`
	Attempt    int    `json:"attempt"`
	HasSession bool   `json:"has_session"`
}
