package rpc

import (
	"strconv"
	"strings"

	"github.com/nbeaver/mxautosave/internal/mxerr"
)

// DefaultPort is used when a FieldID omits "@port" (§4.G, §6).
const DefaultPort = 9727

// FieldID identifies one field on a remote MX server: "host[@port]:record.field".
type FieldID struct {
	Host   string
	Port   int
	Record string
	Field  string
}

// String renders id back to its canonical "host[@port]:record.field" form.
func (id FieldID) String() string {
	host := id.Host
	if id.Port != 0 && id.Port != DefaultPort {
		host = host + "@" + strconv.Itoa(id.Port)
	}
	return host + ":" + id.Record + "." + id.Field
}

// Addr returns the "host:port" dial address for id, substituting
// DefaultPort when none was given.
func (id FieldID) Addr() string {
	port := id.Port
	if port == 0 {
		port = DefaultPort
	}
	return id.Host + ":" + strconv.Itoa(port)
}

// ParseFieldID parses the "host[@port]:record.field" grammar of §4.G.
func ParseFieldID(s string) (FieldID, error) {
	hostPort, recField, ok := strings.Cut(s, ":")
	if !ok {
		return FieldID{}, mxerr.Newf("rpc", mxerr.UnparseableString,
			"field identifier %q missing ':' separator", s)
	}

	host, portStr, hasPort := strings.Cut(hostPort, "@")
	port := 0
	if hasPort {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return FieldID{}, mxerr.Wrapf("rpc", mxerr.UnparseableString, err,
				"invalid port in field identifier %q", s)
		}
		port = p
	}
	if host == "" {
		return FieldID{}, mxerr.Newf("rpc", mxerr.UnparseableString,
			"field identifier %q has an empty host", s)
	}

	record, fieldName, ok := strings.Cut(recField, ".")
	if !ok || record == "" || fieldName == "" {
		return FieldID{}, mxerr.Newf("rpc", mxerr.UnparseableString,
			"field identifier %q must be of the form record.field", s)
	}

	return FieldID{Host: host, Port: port, Record: record, Field: fieldName}, nil
}
