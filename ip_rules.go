package tugraz

import (
	"context"
	"net/netip"

	"github.com/tu-graz-library/invenio-config-tugraz/logger"
	"github.com/tu-graz-library/invenio-config-tugraz/utils"
)

// requesterAddr parses the caller address of id. A missing address is a
// silent no-match; a malformed one is logged.
func requesterAddr(id *Identity, log logger.Logger, rule string) (netip.Addr, bool) {
	if id == nil || id.RemoteAddr == "" {
		return netip.Addr{}, false
	}
	addr, ok := utils.ParseRemoteAddr(id.RemoteAddr)
	if !ok {
		log.Error("malformed requester ip", "rule", rule, "remote_addr", id.RemoteAddr)
		return netip.Addr{}, false
	}
	return addr, true
}

// SingleIPRule lets everybody through unless the record is flagged
// single_ip, in which case only requests from one of the allow-listed IP
// literals pass.
type SingleIPRule struct {
	noExcludes
	allowed utils.AddrSet
	log     logger.Logger
}

// NewSingleIPRule builds the rule from the configured literals. Entries that
// do not parse are logged and skipped.
func NewSingleIPRule(ips []string, log logger.Logger) *SingleIPRule {
	log = logger.OrNull(log)
	set, bad := utils.NewAddrSet(ips)
	for _, b := range bad {
		log.Error("ignoring malformed single ip", "value", b)
	}
	return &SingleIPRule{allowed: set, log: log}
}

func (r *SingleIPRule) allows(id *Identity) bool {
	addr, ok := requesterAddr(id, r.log, "single_ip")
	return ok && r.allowed.Contains(addr)
}

func (r *SingleIPRule) Needs(_ context.Context, rec *Record, id *Identity) []Need {
	if !rec.RequiresSingleIP() || r.allows(id) {
		return []Need{AnyUserNeed}
	}
	return nil
}

func (r *SingleIPRule) QueryFilter(_ context.Context, id *Identity) Query {
	if r.allows(id) {
		return MatchAll
	}
	return Not(Term("custom_fields."+FieldSingleIP, true))
}

// IPNetworkRule lets everybody through unless the record is flagged
// ip_network, in which case only requests from inside the configured CIDR
// block pass. The network and broadcast addresses are part of the block.
type IPNetworkRule struct {
	noExcludes
	network netip.Prefix
	valid   bool
	log     logger.Logger
}

// NewIPNetworkRule parses cidr. A malformed or empty block is logged and the
// rule then never matches a requester.
func NewIPNetworkRule(cidr string, log logger.Logger) *IPNetworkRule {
	log = logger.OrNull(log)
	r := &IPNetworkRule{log: log}
	if cidr == "" {
		return r
	}
	p, ok := utils.ParsePrefix(cidr)
	if !ok {
		log.Error("malformed ip network, rule fails closed", "value", cidr)
		return r
	}
	r.network, r.valid = p, true
	return r
}

func (r *IPNetworkRule) allows(id *Identity) bool {
	if !r.valid {
		return false
	}
	addr, ok := requesterAddr(id, r.log, "ip_network")
	return ok && r.network.Contains(addr)
}

func (r *IPNetworkRule) Needs(_ context.Context, rec *Record, id *Identity) []Need {
	if !rec.RequiresIPNetwork() || r.allows(id) {
		return []Need{AnyUserNeed}
	}
	return nil
}

func (r *IPNetworkRule) QueryFilter(_ context.Context, id *Identity) Query {
	if r.allows(id) {
		return MatchAll
	}
	return Not(Term("custom_fields."+FieldIPNetwork, true))
}

// IfSingleIPRestricted selects Then for records flagged single_ip.
type IfSingleIPRestricted struct{ conditional }

func NewIfSingleIPRestricted(then, els []Generator) *IfSingleIPRestricted {
	return &IfSingleIPRestricted{conditional{
		then:  then,
		els:   els,
		cond:  (*Record).RequiresSingleIP,
		query: Term("custom_fields."+FieldSingleIP, true),
	}}
}

// IfIPNetworkRestricted selects Then for records flagged ip_network.
type IfIPNetworkRestricted struct{ conditional }

func NewIfIPNetworkRestricted(then, els []Generator) *IfIPNetworkRestricted {
	return &IfIPNetworkRestricted{conditional{
		then:  then,
		els:   els,
		cond:  (*Record).RequiresIPNetwork,
		query: Term("custom_fields."+FieldIPNetwork, true),
	}}
}

// IfIPRestricted selects Then for records flagged single_ip or ip_network.
type IfIPRestricted struct{ conditional }

func NewIfIPRestricted(then, els []Generator) *IfIPRestricted {
	return &IfIPRestricted{conditional{
		then: then,
		els:  els,
		cond: func(rec *Record) bool { return rec.RequiresSingleIP() || rec.RequiresIPNetwork() },
		query: Or(
			Term("custom_fields."+FieldSingleIP, true),
			Term("custom_fields."+FieldIPNetwork, true),
		),
	}}
}
