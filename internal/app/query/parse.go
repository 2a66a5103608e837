package query

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kraken-ng/kraken/internal/app/krakenerr"
)

const codeInvalidFilter = "InvalidFilter"

// A filter string is a sequence of whitespace-separated `column:values`
// terms; values are comma-separated and may be double-quoted to include
// spaces or commas. Terms AND, values OR. An unknown column or a value
// that does not parse for its column is a client-input error, never a
// silent drop -- unlike the SPF parser, a filter is typed by a human who
// should be told their query is wrong.

type term struct {
	column string
	values []string
}

func tokenize(input string) ([]term, error) {
	var terms []term
	rest := strings.TrimSpace(input)
	for rest != "" {
		colon := strings.IndexByte(rest, ':')
		if colon <= 0 {
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "filter term missing column prefix")
		}
		column := strings.ToLower(rest[:colon])
		if strings.ContainsAny(column, " \t\"") {
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "filter column may not contain whitespace or quotes")
		}
		rest = rest[colon+1:]

		var values []string
		for {
			value, remainder, err := scanValue(rest)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
			rest = remainder
			if strings.HasPrefix(rest, ",") {
				rest = rest[1:]
				continue
			}
			break
		}
		terms = append(terms, term{column: column, values: values})
		rest = strings.TrimLeft(rest, " \t")
	}
	return terms, nil
}

// scanValue consumes one value: either a double-quoted string or a run of
// characters up to the next comma or whitespace.
func scanValue(input string) (string, string, error) {
	if strings.HasPrefix(input, "\"") {
		end := strings.IndexByte(input[1:], '"')
		if end < 0 {
			return "", "", krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "unterminated quote in filter value")
		}
		return input[1 : 1+end], input[end+2:], nil
	}
	end := strings.IndexAny(input, ", \t")
	if end < 0 {
		return input, "", nil
	}
	return input[:end], input[end:], nil
}

func parsePortRanges(values []string) ([]PortRange, error) {
	out := make([]PortRange, 0, len(values))
	for _, v := range values {
		start, end := v, v
		if dash := strings.IndexByte(v, '-'); dash > 0 {
			start, end = v[:dash], v[dash+1:]
		}
		s, err := strconv.ParseUint(start, 10, 16)
		if err != nil || s == 0 {
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid port "+strconv.Quote(v))
		}
		e, err := strconv.ParseUint(end, 10, 16)
		if err != nil || e < s {
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid port range "+strconv.Quote(v))
		}
		out = append(out, PortRange{Start: uint16(s), End: uint16(e)})
	}
	return out, nil
}

func parseIPTerms(values []string) ([]IPTerm, error) {
	out := make([]IPTerm, 0, len(values))
	for _, v := range values {
		if strings.ContainsRune(v, '/') {
			if _, _, err := net.ParseCIDR(v); err != nil {
				return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid network "+strconv.Quote(v))
			}
			out = append(out, IPTerm{Value: v, CIDR: true})
			continue
		}
		ip := net.ParseIP(v)
		if ip == nil {
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid address "+strconv.Quote(v))
		}
		out = append(out, IPTerm{Value: ip.String()})
	}
	return out, nil
}

// parseTimeRanges parses `after..before` values where either bound may be
// omitted; bounds are RFC 3339 timestamps or plain `2006-01-02` dates.
func parseTimeRanges(values []string) ([]TimeRange, error) {
	out := make([]TimeRange, 0, len(values))
	for _, v := range values {
		sep := strings.Index(v, "..")
		if sep < 0 {
			t, err := parseTimestamp(v)
			if err != nil {
				return nil, err
			}
			out = append(out, TimeRange{After: &t})
			continue
		}
		var r TimeRange
		if before := v[sep+2:]; before != "" {
			t, err := parseTimestamp(before)
			if err != nil {
				return nil, err
			}
			r.Before = &t
		}
		if after := v[:sep]; after != "" {
			t, err := parseTimestamp(after)
			if err != nil {
				return nil, err
			}
			r.After = &t
		}
		if r.After == nil && r.Before == nil {
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "empty createdAt range")
		}
		out = append(out, r)
	}
	return out, nil
}

func parseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Time{}, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid timestamp "+strconv.Quote(v))
}

func parseBool(values []string) (*bool, error) {
	if len(values) != 1 {
		return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "boolean term takes exactly one value")
	}
	switch strings.ToLower(values[0]) {
	case "true", "yes":
		v := true
		return &v, nil
	case "false", "no":
		v := false
		return &v, nil
	}
	return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid boolean "+strconv.Quote(values[0]))
}

func parseProtocols(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		switch p := strings.ToLower(v); p {
		case "tcp", "udp", "sctp", "unknown":
			out = append(out, p)
		default:
			return nil, krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "invalid transport protocol "+strconv.Quote(v))
		}
	}
	return out, nil
}

func unknownColumn(column string) error {
	return krakenerr.New(krakenerr.ClientInput, codeInvalidFilter, "unknown filter column "+strconv.Quote(column))
}

// ParseGlobal parses the terms valid on every entity kind.
func ParseGlobal(input string) (GlobalAST, error) {
	var ast GlobalAST
	terms, err := tokenize(input)
	if err != nil {
		return ast, err
	}
	for _, t := range terms {
		switch t.column {
		case "tags", "tag":
			ast.Tags = append(ast.Tags, t.values...)
		case "createdat":
			ranges, err := parseTimeRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.CreatedAt = append(ast.CreatedAt, ranges...)
		default:
			return ast, unknownColumn(t.column)
		}
	}
	return ast, nil
}

// ParseHost parses a host filter string.
func ParseHost(input string) (HostAST, error) {
	var ast HostAST
	terms, err := tokenize(input)
	if err != nil {
		return ast, err
	}
	for _, t := range terms {
		switch t.column {
		case "tags", "tag":
			ast.Tags = append(ast.Tags, t.values...)
		case "createdat":
			ranges, err := parseTimeRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.CreatedAt = append(ast.CreatedAt, ranges...)
		case "ips", "ip":
			ips, err := parseIPTerms(t.values)
			if err != nil {
				return ast, err
			}
			ast.IPs = append(ast.IPs, ips...)
		case "os":
			ast.OS = append(ast.OS, t.values...)
		default:
			return ast, unknownColumn(t.column)
		}
	}
	return ast, nil
}

// ParsePort parses a port filter string.
func ParsePort(input string) (PortAST, error) {
	var ast PortAST
	terms, err := tokenize(input)
	if err != nil {
		return ast, err
	}
	for _, t := range terms {
		switch t.column {
		case "tags", "tag":
			ast.Tags = append(ast.Tags, t.values...)
		case "createdat":
			ranges, err := parseTimeRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.CreatedAt = append(ast.CreatedAt, ranges...)
		case "ports", "port":
			ranges, err := parsePortRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.Ports = append(ast.Ports, ranges...)
		case "ips", "ip":
			ips, err := parseIPTerms(t.values)
			if err != nil {
				return ast, err
			}
			ast.IPs = append(ast.IPs, ips...)
		case "protocols", "protocol":
			protos, err := parseProtocols(t.values)
			if err != nil {
				return ast, err
			}
			ast.Protocols = append(ast.Protocols, protos...)
		default:
			return ast, unknownColumn(t.column)
		}
	}
	return ast, nil
}

// ParseService parses a service filter string.
func ParseService(input string) (ServiceAST, error) {
	var ast ServiceAST
	terms, err := tokenize(input)
	if err != nil {
		return ast, err
	}
	for _, t := range terms {
		switch t.column {
		case "tags", "tag":
			ast.Tags = append(ast.Tags, t.values...)
		case "createdat":
			ranges, err := parseTimeRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.CreatedAt = append(ast.CreatedAt, ranges...)
		case "services", "service", "names", "name":
			ast.Names = append(ast.Names, t.values...)
		case "ports", "port":
			ranges, err := parsePortRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.Ports = append(ast.Ports, ranges...)
		case "ips", "ip":
			ips, err := parseIPTerms(t.values)
			if err != nil {
				return ast, err
			}
			ast.IPs = append(ast.IPs, ips...)
		default:
			return ast, unknownColumn(t.column)
		}
	}
	return ast, nil
}

// ParseHttpService parses an http-service filter string.
func ParseHttpService(input string) (HttpServiceAST, error) {
	var ast HttpServiceAST
	terms, err := tokenize(input)
	if err != nil {
		return ast, err
	}
	for _, t := range terms {
		switch t.column {
		case "tags", "tag":
			ast.Tags = append(ast.Tags, t.values...)
		case "createdat":
			ranges, err := parseTimeRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.CreatedAt = append(ast.CreatedAt, ranges...)
		case "names", "name":
			ast.Names = append(ast.Names, t.values...)
		case "paths", "path":
			ast.BasePaths = append(ast.BasePaths, t.values...)
		case "ports", "port":
			ranges, err := parsePortRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.Ports = append(ast.Ports, ranges...)
		case "ips", "ip":
			ips, err := parseIPTerms(t.values)
			if err != nil {
				return ast, err
			}
			ast.IPs = append(ast.IPs, ips...)
		case "tls":
			v, err := parseBool(t.values)
			if err != nil {
				return ast, err
			}
			ast.TLS = v
		case "sni":
			v, err := parseBool(t.values)
			if err != nil {
				return ast, err
			}
			ast.SNI = v
		default:
			return ast, unknownColumn(t.column)
		}
	}
	return ast, nil
}

// ParseDomain parses a domain filter string.
func ParseDomain(input string) (DomainAST, error) {
	var ast DomainAST
	terms, err := tokenize(input)
	if err != nil {
		return ast, err
	}
	for _, t := range terms {
		switch t.column {
		case "tags", "tag":
			ast.Tags = append(ast.Tags, t.values...)
		case "createdat":
			ranges, err := parseTimeRanges(t.values)
			if err != nil {
				return ast, err
			}
			ast.CreatedAt = append(ast.CreatedAt, ranges...)
		case "domains", "domain":
			ast.Domains = append(ast.Domains, t.values...)
		default:
			return ast, unknownColumn(t.column)
		}
	}
	return ast, nil
}
