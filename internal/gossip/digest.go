package gossip

import (
	"strconv"
	"strings"

	"ringkeep/internal/membership"
)

// triple is one (address, generation, version) entry as carried in a SYN
// digest, parsed from the wire's "ip:gen:ver" form. Parsing works from the
// right so that addresses containing their own colon (host:port) are not
// split incorrectly.
type triple struct {
	addr string
	inc  membership.Incarnation
}

func parseTriple(s string) (triple, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return triple{}, false
	}
	verStr := parts[len(parts)-1]
	genStr := parts[len(parts)-2]
	addr := strings.Join(parts[:len(parts)-2], ":")

	gen, err := strconv.ParseFloat(genStr, 64)
	if err != nil {
		return triple{}, false
	}
	ver, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		return triple{}, false
	}
	return triple{addr: addr, inc: membership.Incarnation{Generation: gen, Version: ver}}, true
}

func parseDigest(digest string) []triple {
	fields := strings.Fields(digest)
	out := make([]triple, 0, len(fields))
	for _, f := range fields {
		if t, ok := parseTriple(f); ok {
			out = append(out, t)
		}
	}
	return out
}

// fullTuple is an (address, incarnation, status) entry as carried in ACK
// line 2 and in ACK2, parsed from the wire's "ip:gen:ver:status" form.
type fullTuple struct {
	addr   string
	inc    membership.Incarnation
	status membership.Status
}

func parseFullTuple(s string) (fullTuple, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return fullTuple{}, false
	}
	statusStr := parts[len(parts)-1]
	verStr := parts[len(parts)-2]
	genStr := parts[len(parts)-3]
	addr := strings.Join(parts[:len(parts)-3], ":")

	status, err := membership.ParseStatus(statusStr)
	if err != nil {
		return fullTuple{}, false
	}
	gen, err := strconv.ParseFloat(genStr, 64)
	if err != nil {
		return fullTuple{}, false
	}
	ver, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		return fullTuple{}, false
	}
	return fullTuple{addr: addr, inc: membership.Incarnation{Generation: gen, Version: ver}, status: status}, true
}

func parseFullTuples(line string) []fullTuple {
	fields := strings.Fields(line)
	out := make([]fullTuple, 0, len(fields))
	for _, f := range fields {
		if t, ok := parseFullTuple(f); ok {
			out = append(out, t)
		}
	}
	return out
}

func formatFullTuple(addr string, inc membership.Incarnation, status membership.Status) string {
	return addr + ":" + strconv.FormatFloat(inc.Generation, 'f', -1, 64) + ":" +
		strconv.FormatInt(inc.Version, 10) + ":" + status.String()
}
