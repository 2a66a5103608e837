package query

import (
	"strings"
	"time"
)

// The filter grammar is AND-of-OR: every present AST field contributes one
// condition ANDed onto the query, and the values inside a field are ORed
// with each other. A nil/empty field contributes nothing.

// TimeRange is one `after..before` value of a createdAt term; either bound
// may be open.
type TimeRange struct {
	After  *time.Time
	Before *time.Time
}

// PortRange is one value of a ports term: a single port or an inclusive
// range.
type PortRange struct {
	Start uint16
	End   uint16
}

// IPTerm is one value of an ips term: an exact address or a CIDR network.
type IPTerm struct {
	Value string
	CIDR  bool
}

// GlobalAST holds the terms valid on every entity kind.
type GlobalAST struct {
	Tags      []string
	CreatedAt []TimeRange
}

// HostAST filters the host table.
type HostAST struct {
	Tags      []string
	CreatedAt []TimeRange
	IPs       []IPTerm
	OS        []string
}

// PortAST filters the port table.
type PortAST struct {
	Tags      []string
	CreatedAt []TimeRange
	Ports     []PortRange
	IPs       []IPTerm
	Protocols []string
}

// ServiceAST filters the service table.
type ServiceAST struct {
	Tags      []string
	CreatedAt []TimeRange
	Names     []string
	Ports     []PortRange
	IPs       []IPTerm
}

// HttpServiceAST filters the http_service table.
type HttpServiceAST struct {
	Tags      []string
	CreatedAt []TimeRange
	Names     []string
	Ports     []PortRange
	IPs       []IPTerm
	BasePaths []string
	TLS       *bool
	SNI       *bool
}

// DomainAST filters the domain table.
type DomainAST struct {
	Tags      []string
	CreatedAt []TimeRange
	Domains   []string
}

// applyTags emits the tag membership condition shared by every kind: the
// entity appears in either tag link table under one of the given tag
// names.
func applyTags(b *Builder, table string, tags []string) {
	if len(tags) == 0 {
		return
	}
	var ors []string
	var args []interface{}
	for _, t := range tags {
		ors = append(ors,
			table+`.uuid IN (
				SELECT l.entity FROM workspace_tag_link l
				JOIN workspace_tag t ON t.uuid = l.tag
				WHERE l.entity_table = ? AND t.name = ?
				UNION
				SELECT l.entity FROM global_tag_link l
				JOIN global_tag t ON t.uuid = l.tag
				WHERE l.entity_table = ? AND t.name = ?
			)`)
		args = append(args, table, t, table, t)
	}
	b.Where(strings.Join(ors, " OR "), args...)
}

func applyCreatedAt(b *Builder, table string, ranges []TimeRange) {
	if len(ranges) == 0 {
		return
	}
	var ors []string
	var args []interface{}
	for _, r := range ranges {
		switch {
		case r.After != nil && r.Before != nil:
			ors = append(ors, table+".created_at BETWEEN ? AND ?")
			args = append(args, *r.After, *r.Before)
		case r.After != nil:
			ors = append(ors, table+".created_at >= ?")
			args = append(args, *r.After)
		case r.Before != nil:
			ors = append(ors, table+".created_at <= ?")
			args = append(args, *r.Before)
		}
	}
	if len(ors) > 0 {
		b.Where(strings.Join(ors, " OR "), args...)
	}
}

// applyIPs matches an ip_address column against exact addresses and CIDR
// networks. The column is inet in the schema; CIDR containment uses
// inet's <<= server-side, with the user value still bound.
func applyIPs(b *Builder, column string, ips []IPTerm) {
	if len(ips) == 0 {
		return
	}
	var ors []string
	var args []interface{}
	for _, ip := range ips {
		if ip.CIDR {
			ors = append(ors, column+"::inet <<= ?::inet")
		} else {
			ors = append(ors, column+" = ?")
		}
		args = append(args, ip.Value)
	}
	b.Where(strings.Join(ors, " OR "), args...)
}

func applyPorts(b *Builder, column string, ports []PortRange) {
	if len(ports) == 0 {
		return
	}
	var ors []string
	var args []interface{}
	for _, p := range ports {
		if p.Start == p.End {
			ors = append(ors, column+" = ?")
			args = append(args, int(p.Start))
		} else {
			ors = append(ors, column+" BETWEEN ? AND ?")
			args = append(args, int(p.Start), int(p.End))
		}
	}
	b.Where(strings.Join(ors, " OR "), args...)
}

func applyStrings(b *Builder, column string, values []string) {
	if len(values) == 0 {
		return
	}
	var ors []string
	var args []interface{}
	for _, v := range values {
		ors = append(ors, column+" = ?")
		args = append(args, v)
	}
	b.Where(strings.Join(ors, " OR "), args...)
}

// ApplyToQuery appends this AST's conditions plus the global filter's onto
// b. Called once for the count query and once for the select query of a
// listing so both stay consistent.
func (a HostAST) ApplyToQuery(global GlobalAST, b *Builder) {
	applyTags(b, "host", append(append([]string(nil), global.Tags...), a.Tags...))
	applyCreatedAt(b, "host", append(append([]TimeRange(nil), global.CreatedAt...), a.CreatedAt...))
	applyIPs(b, "host.ip_address", a.IPs)
	applyStrings(b, "host.os_type", a.OS)
}

func (a PortAST) ApplyToQuery(global GlobalAST, b *Builder) {
	applyTags(b, "port", append(append([]string(nil), global.Tags...), a.Tags...))
	applyCreatedAt(b, "port", append(append([]TimeRange(nil), global.CreatedAt...), a.CreatedAt...))
	applyPorts(b, "port.number", a.Ports)
	applyStrings(b, "port.transport", a.Protocols)
	if len(a.IPs) > 0 {
		sub := NewBuilder("")
		applyIPs(sub, "host.ip_address", a.IPs)
		b.Where("port.host IN (SELECT host.uuid FROM host WHERE "+strings.Join(sub.conds, " AND ")+")", sub.args...)
	}
}

func (a ServiceAST) ApplyToQuery(global GlobalAST, b *Builder) {
	applyTags(b, "service", append(append([]string(nil), global.Tags...), a.Tags...))
	applyCreatedAt(b, "service", append(append([]TimeRange(nil), global.CreatedAt...), a.CreatedAt...))
	applyStrings(b, "service.name", a.Names)
	if len(a.Ports) > 0 {
		sub := NewBuilder("")
		applyPorts(sub, "port.number", a.Ports)
		b.Where("service.port IN (SELECT port.uuid FROM port WHERE "+strings.Join(sub.conds, " AND ")+")", sub.args...)
	}
	if len(a.IPs) > 0 {
		sub := NewBuilder("")
		applyIPs(sub, "host.ip_address", a.IPs)
		b.Where("service.host IN (SELECT host.uuid FROM host WHERE "+strings.Join(sub.conds, " AND ")+")", sub.args...)
	}
}

func (a HttpServiceAST) ApplyToQuery(global GlobalAST, b *Builder) {
	applyTags(b, "http_service", append(append([]string(nil), global.Tags...), a.Tags...))
	applyCreatedAt(b, "http_service", append(append([]TimeRange(nil), global.CreatedAt...), a.CreatedAt...))
	applyStrings(b, "http_service.name", a.Names)
	applyStrings(b, "http_service.base_path", a.BasePaths)
	if a.TLS != nil {
		b.Where("http_service.tls = ?", *a.TLS)
	}
	if a.SNI != nil {
		b.Where("http_service.sni_required = ?", *a.SNI)
	}
	if len(a.Ports) > 0 {
		sub := NewBuilder("")
		applyPorts(sub, "port.number", a.Ports)
		b.Where("http_service.port IN (SELECT port.uuid FROM port WHERE "+strings.Join(sub.conds, " AND ")+")", sub.args...)
	}
	if len(a.IPs) > 0 {
		sub := NewBuilder("")
		applyIPs(sub, "host.ip_address", a.IPs)
		b.Where("http_service.host IN (SELECT host.uuid FROM host WHERE "+strings.Join(sub.conds, " AND ")+")", sub.args...)
	}
}

func (a DomainAST) ApplyToQuery(global GlobalAST, b *Builder) {
	applyTags(b, "domain", append(append([]string(nil), global.Tags...), a.Tags...))
	applyCreatedAt(b, "domain", append(append([]TimeRange(nil), global.CreatedAt...), a.CreatedAt...))
	applyStrings(b, "domain.name", a.Domains)
}
