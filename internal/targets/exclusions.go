package targets

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/censys/cidranger"
)

// Reason names why an input line was not accepted.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonInvalid       Reason = "invalid"
	ReasonLoopback      Reason = "loopback"
	ReasonMulticast     Reason = "multicast"
	ReasonUnspecified   Reason = "unspecified"
	ReasonLinkLocal     Reason = "link_local"
	ReasonReserved      Reason = "reserved"
	ReasonLegacyNetwork Reason = "legacy_network"
	ReasonBroadcast     Reason = "broadcast"
)

// excludedNetworks lists every special-purpose block an address may not fall
// in. When blocks overlap the most specific one names the reason.
var excludedNetworks = []struct {
	cidr   string
	reason Reason
}{
	{"0.0.0.0/8", ReasonLegacyNetwork},
	{"0.0.0.0/32", ReasonUnspecified},
	{"127.0.0.0/8", ReasonLoopback},
	{"169.254.0.0/16", ReasonLinkLocal},
	{"224.0.0.0/4", ReasonMulticast},
	{"240.0.0.0/4", ReasonReserved},
	{"255.255.255.255/32", ReasonBroadcast},

	{"::/128", ReasonUnspecified},
	{"::1/128", ReasonLoopback},
	{"fe80::/10", ReasonLinkLocal},
	{"ff00::/8", ReasonMulticast},

	// IETF reserved IPv6 space.
	{"::/8", ReasonReserved},
	{"100::/8", ReasonReserved},
	{"200::/7", ReasonReserved},
	{"400::/6", ReasonReserved},
	{"800::/5", ReasonReserved},
	{"1000::/4", ReasonReserved},
	{"4000::/3", ReasonReserved},
	{"6000::/3", ReasonReserved},
	{"8000::/3", ReasonReserved},
	{"a000::/3", ReasonReserved},
	{"c000::/3", ReasonReserved},
	{"e000::/4", ReasonReserved},
	{"f000::/5", ReasonReserved},
	{"f800::/6", ReasonReserved},
	{"fe00::/9", ReasonReserved},
}

type exclusionEntry struct {
	network net.IPNet
	reason  Reason
	bits    int
}

func (e *exclusionEntry) Network() net.IPNet {
	return e.network
}

// Exclusions classifies addresses against the excluded network table.
type Exclusions struct {
	ranger cidranger.Ranger
}

// NewExclusions builds the exclusion table.
func NewExclusions() (*Exclusions, error) {
	ranger := cidranger.NewPCTrieRanger()
	for _, n := range excludedNetworks {
		_, ipNet, err := net.ParseCIDR(n.cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid excluded network %s: %w", n.cidr, err)
		}
		bits, _ := ipNet.Mask.Size()
		if err := ranger.Insert(&exclusionEntry{network: *ipNet, reason: n.reason, bits: bits}); err != nil {
			return nil, fmt.Errorf("failed to insert excluded network %s: %w", n.cidr, err)
		}
	}
	return &Exclusions{ranger: ranger}, nil
}

// Classify returns the reason addr must not be scanned, or ReasonNone.
func (x *Exclusions) Classify(addr netip.Addr) Reason {
	// IPv4-mapped IPv6 lives inside ::/8.
	if addr.Is4In6() {
		return ReasonReserved
	}

	entries, err := x.ranger.ContainingNetworks(net.IP(addr.WithZone("").AsSlice()))
	if err != nil {
		return ReasonInvalid
	}

	reason, best := ReasonNone, -1
	for _, entry := range entries {
		e, ok := entry.(*exclusionEntry)
		if !ok {
			continue
		}
		if e.bits > best {
			reason, best = e.reason, e.bits
		}
	}
	return reason
}
