package discovery

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// Advertiser registers one bridge.
type Advertiser struct {
	// Interface restricts advertising to one network interface.
	Interface string

	// TTL overrides the record TTL.
	TTL time.Duration

	mu     sync.Mutex
	server *zeroconf.Server
}

// Advertise starts advertising info, replacing any earlier registration.
func (a *Advertiser) Advertise(info *BridgeInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}
	var opts []zeroconf.ServerOption
	if a.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.InstanceName(),
		ServiceType,
		Domain,
		port,
		EncodeTXT(info).ToStrings(),
		interfaces(a.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", info.InstanceName(), err)
	}
	a.server = server
	return nil
}

// Stop withdraws the registration.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// interfaces returns the named interface, or nil for all of them.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Bridge is a discovered bench bridge.
type Bridge struct {
	BridgeInfo

	InstanceName string
	Host         string
	Addresses    []string
}

// Address returns a tcp:// address for the bridge, preferring the first
// advertised IP over the host name.
func (b *Bridge) Address() string {
	host := b.Host
	if len(b.Addresses) > 0 {
		host = b.Addresses[0]
	}
	return "tcp://" + net.JoinHostPort(host, strconv.Itoa(int(b.Port)))
}

// Browser finds bridges.
type Browser struct {
	// Interface restricts browsing to one network interface.
	Interface string
}

// Browse emits each bridge once when first seen, with the addresses known
// at that moment. Later sightings on other interfaces are merged
// internally and do not modify emitted bridges. The channel closes when
// ctx is done.
func (b *Browser) Browse(ctx context.Context) (<-chan *Bridge, error) {
	out := make(chan *Bridge)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		agg := newAggregator()
		removedCh := (<-chan *zeroconf.ServiceEntry)(removed)

		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				br := agg.add(bridgeFromEntry(entry))
				if br == nil {
					continue
				}
				select {
				case out <- br:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removedCh:
				if !ok {
					removedCh = nil
					continue
				}
				agg.remove(entry.Instance, entryAddresses(entry))

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()
	return out, nil
}

// Find returns the first bridge accepted by match, or ErrNotFound when
// ctx ends first. A nil match accepts any bridge.
func (b *Browser) Find(ctx context.Context, match func(*Bridge) bool) (*Bridge, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	for br := range found {
		if match == nil || match(br) {
			return br, nil
		}
	}
	return nil, ErrNotFound
}

func bridgeFromEntry(entry *zeroconf.ServiceEntry) *Bridge {
	return newBridge(entry.Instance, entry.HostName, entry.Port, entry.Text, entryAddresses(entry))
}

func newBridge(instance, host string, port int, text []string, addrs []string) *Bridge {
	info, err := DecodeTXT(ParseTXT(text))
	if err != nil {
		return nil
	}
	info.Port = uint16(port)
	return &Bridge{
		BridgeInfo:   *info,
		InstanceName: instance,
		Host:         host,
		Addresses:    addrs,
	}
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// aggregator merges browse results per instance. Bridges it returns
// belong to the caller; later updates touch only its own copies.
type aggregator struct {
	known map[string]*Bridge
}

func newAggregator() *aggregator {
	return &aggregator{known: make(map[string]*Bridge)}
}

// add records br and returns a copy to emit when the instance is new.
func (a *aggregator) add(br *Bridge) *Bridge {
	if br == nil {
		return nil
	}
	if existing, found := a.known[br.InstanceName]; found {
		existing.Addresses = mergeAddresses(existing.Addresses, br.Addresses)
		return nil
	}
	a.known[br.InstanceName] = br
	out := *br
	out.Addresses = slices.Clone(br.Addresses)
	return &out
}

// remove drops addrs from instance and forgets it once none are left.
func (a *aggregator) remove(instance string, addrs []string) {
	existing, found := a.known[instance]
	if !found {
		return
	}
	existing.Addresses = removeAddresses(existing.Addresses, addrs)
	if len(existing.Addresses) == 0 {
		delete(a.known, instance)
	}
}

// mergeAddresses returns existing plus the addresses in add not already
// present. Neither input is modified.
func mergeAddresses(existing, add []string) []string {
	out := slices.Clone(existing)
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range add {
		if !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

// removeAddresses returns addresses without those in drop. Neither input
// is modified.
func removeAddresses(addresses, drop []string) []string {
	gone := make(map[string]bool, len(drop))
	for _, a := range drop {
		gone[a] = true
	}
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if !gone[a] {
			out = append(out, a)
		}
	}
	return out
}
