package discovery

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// mDNS naming.
const (
	ServiceType = "_devlink._tcp"
	Domain      = "local"

	DefaultPort        = 7700
	MaxInstanceNameLen = 63
)

// TXT keys.
const (
	TXTKeyDeviceID   = "id"
	TXTKeySubsystems = "sub"
	TXTKeyVersion    = "ver"
	TXTKeyName       = "name"
)

// Errors.
var (
	ErrMissingRequired = errors.New("discovery: missing required TXT record")
	ErrInvalidVersion  = errors.New("discovery: invalid version TXT record")
	ErrNotFound        = errors.New("discovery: bridge not found")
)

// BridgeInfo is what a bridge advertises.
type BridgeInfo struct {
	DeviceID   string
	Subsystems []string
	MaxVersion uint8
	Name       string
	Port       uint16
}

// InstanceName returns the mDNS instance name, truncated to the DNS label limit.
func (i *BridgeInfo) InstanceName() string {
	name := "devlink-" + i.DeviceID
	if len(name) > MaxInstanceNameLen {
		name = name[:MaxInstanceNameLen]
	}
	return name
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates TXT records for info.
func EncodeTXT(info *BridgeInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyDeviceID: info.DeviceID,
		TXTKeyVersion:  strconv.FormatUint(uint64(info.MaxVersion), 10),
	}
	if len(info.Subsystems) > 0 {
		txt[TXTKeySubsystems] = strings.Join(info.Subsystems, ",")
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	return txt
}

// DecodeTXT parses a bridge's TXT records. Port is not part of TXT and is
// left zero.
func DecodeTXT(txt TXTRecordMap) (*BridgeInfo, error) {
	id, ok := txt[TXTKeyDeviceID]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyDeviceID)
	}
	info := &BridgeInfo{DeviceID: id, Name: txt[TXTKeyName], MaxVersion: 1}

	if v, ok := txt[TXTKeyVersion]; ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
		}
		info.MaxVersion = uint8(n)
	}
	if s := txt[TXTKeySubsystems]; s != "" {
		info.Subsystems = strings.Split(s, ",")
	}
	return info, nil
}

// ToStrings renders TXT records as sorted "key=value" strings.
func (t TXTRecordMap) ToStrings() []string {
	out := make([]string, 0, len(t))
	for k, v := range t {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

// ParseTXT parses "key=value" strings. A bare key maps to "".
func ParseTXT(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(strs))
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}
