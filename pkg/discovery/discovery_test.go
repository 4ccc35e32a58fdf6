package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXTRoundTrip(t *testing.T) {
	info := &BridgeInfo{
		DeviceID:   "bench-07",
		Subsystems: []string{"display", "motion"},
		MaxVersion: 2,
		Name:       "Bench 7",
	}

	strs := EncodeTXT(info).ToStrings()
	assert.Equal(t, []string{"id=bench-07", "name=Bench 7", "sub=display,motion", "ver=2"}, strs)

	got, err := DecodeTXT(ParseTXT(strs))
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestDecodeTXTErrors(t *testing.T) {
	_, err := DecodeTXT(TXTRecordMap{TXTKeyVersion: "2"})
	assert.ErrorIs(t, err, ErrMissingRequired)

	_, err = DecodeTXT(TXTRecordMap{TXTKeyDeviceID: "x", TXTKeyVersion: "zero"})
	assert.ErrorIs(t, err, ErrInvalidVersion)

	info, err := DecodeTXT(TXTRecordMap{TXTKeyDeviceID: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint8(1), info.MaxVersion, "bridges that omit ver speak V1")
}

func TestParseTXTBareKey(t *testing.T) {
	txt := ParseTXT([]string{"flag", "a=b=c", ""})
	assert.Equal(t, TXTRecordMap{"flag": "", "a": "b=c"}, txt)
}

func TestInstanceNameTruncated(t *testing.T) {
	info := &BridgeInfo{DeviceID: strings.Repeat("x", 100)}
	assert.Len(t, info.InstanceName(), MaxInstanceNameLen)
}

func TestNewBridgeAndAddress(t *testing.T) {
	br := newBridge("devlink-bench-07", "bench.local.", 7700, []string{"id=bench-07", "ver=2"}, []string{"192.168.1.20", "fe80::1"})
	require.NotNil(t, br)
	assert.Equal(t, "bench-07", br.DeviceID)
	assert.Equal(t, uint16(7700), br.Port)
	assert.Equal(t, "tcp://192.168.1.20:7700", br.Address())

	br.Addresses = nil
	assert.Equal(t, "tcp://bench.local.:7700", br.Address())

	assert.Nil(t, newBridge("junk", "h", 1, []string{"ver=2"}, nil))
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	addrs := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "fe80::1"})
	assert.Equal(t, []string{"10.0.0.1", "fe80::1"}, addrs)

	addrs = removeAddresses(addrs, []string{"10.0.0.1"})
	assert.Equal(t, []string{"fe80::1"}, addrs)
}

func TestAggregatorEmitsIndependentCopy(t *testing.T) {
	agg := newAggregator()
	text := []string{"id=base-01", "ver=2"}

	first := agg.add(newBridge("devlink-base-01", "bench.local.", 7700, text, []string{"10.0.0.1"}))
	require.NotNil(t, first)

	// A second sighting on another interface merges, it is not re-emitted.
	assert.Nil(t, agg.add(newBridge("devlink-base-01", "bench.local.", 7700, text, []string{"fe80::1"})))
	agg.remove("devlink-base-01", []string{"10.0.0.1"})

	assert.Equal(t, []string{"10.0.0.1"}, first.Addresses)
	assert.Equal(t, "tcp://10.0.0.1:7700", first.Address())
	assert.Equal(t, []string{"fe80::1"}, agg.known["devlink-base-01"].Addresses)

	agg.remove("devlink-base-01", []string{"fe80::1"})
	assert.NotContains(t, agg.known, "devlink-base-01")

	// Forgotten instances are emitted again when they come back.
	assert.NotNil(t, agg.add(newBridge("devlink-base-01", "bench.local.", 7700, text, []string{"10.0.0.1"})))
}

func TestAddressHelpersDoNotAlias(t *testing.T) {
	in := []string{"10.0.0.1", "10.0.0.2"}
	out := removeAddresses(in, []string{"10.0.0.1"})
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, in)
	assert.Equal(t, []string{"10.0.0.2"}, out)
}
