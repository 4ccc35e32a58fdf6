package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadDecodeRejectsWrongSize(t *testing.T) {
	_, err := DecodeSetState([]byte{1})
	assert.ErrorIs(t, err, ErrLength)

	_, err = DecodeHeartbeat(make([]byte, heartbeatSize-1))
	assert.ErrorIs(t, err, ErrLength)

	_, err = DecodeInputEvent(TypeTouchEvent, make([]byte, inputEventSize+1))
	assert.ErrorIs(t, err, ErrLength)
}

func TestSetMotionSigned(t *testing.T) {
	in := SetMotion{LinearMMs: -250, AngularMradS: 1200}
	out, err := DecodeSetMotion(in.Encode())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestInputEventKind(t *testing.T) {
	touch := InputEvent{Source: 2, Pressed: true, AtUs: 42}
	assert.Equal(t, TypeTouchEvent, touch.Type())

	button := InputEvent{Button: true, Source: 1, AtUs: 7}
	assert.Equal(t, TypeButtonEvent, button.Type())

	got, err := DecodeInputEvent(TypeButtonEvent, button.Encode())
	require.NoError(t, err)
	assert.Equal(t, button, got)
}

func TestTimeSyncDirection(t *testing.T) {
	req := TimeSync{PingID: 77}
	assert.Equal(t, TypeTimeSyncRequest, req.Type())

	resp, err := DecodeTimeSync(TypeTimeSyncResponse, req.Encode())
	require.NoError(t, err)
	assert.True(t, resp.Response)
	assert.Equal(t, uint32(77), resp.PingID)
}

func TestEnumNames(t *testing.T) {
	m, ok := ParseMood("SAD")
	assert.True(t, ok)
	assert.Equal(t, MoodSad, m)
	assert.Equal(t, "UNKNOWN", Mood(200).String())

	mode, ok := ParseMode("SAFE")
	assert.True(t, ok)
	assert.Equal(t, ModeSafe, mode)

	g, ok := ParseGesture("WINK")
	assert.True(t, ok)
	assert.Equal(t, GestureWink, g)

	_, ok = ParseGesture("DANCE")
	assert.False(t, ok)
}
