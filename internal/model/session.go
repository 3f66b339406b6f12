package model

import "time"

// Session binds one (trip, channel address) pair to a conversation key.
// The channel address is always stored in normalized form, so a participant's
// registered number and a later inbound contact from the same number in a
// different format land on the same row.
type Session struct {
	Token          string    `db:"token" json:"token"`
	TripID         string    `db:"trip_id" json:"tripId"`
	ChannelAddress string    `db:"channel_address" json:"channelAddress"`
	LastSeenAt     time.Time `db:"last_seen_at" json:"lastSeenAt"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

type UpsertSessionParams struct {
	Token          string
	TripID         string
	ChannelAddress string
}
