package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	legal := []struct {
		cur  RoomStatus
		evt  RoomEvent
		want RoomStatus
	}{
		{"", EventCreate, RoomStatusWaiting},
		{RoomStatusWaiting, EventJoin, RoomStatusWaiting},
		{RoomStatusWaiting, EventPlay, RoomStatusProcessing},
		{RoomStatusProcessing, EventResolve, RoomStatusFinished},
	}
	for _, c := range legal {
		got, err := NextStatus(c.cur, c.evt)
		require.NoError(t, err, "%s/%s", c.cur, c.evt)
		assert.Equal(t, c.want, got)
	}

	illegal := []struct {
		cur RoomStatus
		evt RoomEvent
	}{
		{"", EventJoin},
		{RoomStatusWaiting, EventCreate},
		{RoomStatusWaiting, EventResolve},
		{RoomStatusProcessing, EventJoin},
		{RoomStatusProcessing, EventPlay},
		{RoomStatusFinished, EventResolve},
		{RoomStatusFinished, EventJoin},
	}
	for _, c := range illegal {
		_, err := NextStatus(c.cur, c.evt)
		assert.Error(t, err, "%s/%s", c.cur, c.evt)
	}
}

func TestParseSeed(t *testing.T) {
	s, err := ParseSeed(strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), s[31])
	assert.Equal(t, strings.Repeat("ab", 32), s.String())

	for _, bad := range []string{"", "zz", strings.Repeat("ab", 31), strings.Repeat("00", 32)} {
		_, err := ParseSeed(bad)
		assert.ErrorIs(t, err, ErrInvalidSeed, bad)
	}
}

func TestRandomness(t *testing.T) {
	var r Randomness
	r[0], r[1] = 0x02, 0x01
	assert.Equal(t, uint64(0x0102), r.Uint64())

	back, err := ParseRandomness(r.String())
	require.NoError(t, err)
	assert.Equal(t, r, back)

	_, err = ParseRandomness("abcd")
	assert.Error(t, err)
}

func TestValidateRoomID(t *testing.T) {
	assert.NoError(t, ValidateRoomID("r1"))
	assert.NoError(t, ValidateRoomID(strings.Repeat("a", MaxRoomIDLen)))
	assert.ErrorIs(t, ValidateRoomID(""), ErrInvalidRoomID)
	assert.ErrorIs(t, ValidateRoomID(strings.Repeat("a", MaxRoomIDLen+1)), ErrInvalidRoomID)
}

func TestRoomPot(t *testing.T) {
	r := &Room{Stake: MinStake, Status: RoomStatusWaiting}
	assert.Equal(t, MinStake, r.Pot())

	r.PlayerTwo = "p2"
	assert.Equal(t, 2*MinStake, r.Pot())

	r.Status = RoomStatusFinished
	assert.Zero(t, r.Pot())
}
