// Package targets turns a raw, line-oriented address list into the sequence
// of addresses scanfinder is allowed to scan.
//
// Comment (#) and blank lines are skipped. Every other line contributes its
// first whitespace-delimited token, with any :port suffix removed. Tokens that
// do not parse as an IP address, or that fall in a loopback, multicast,
// unspecified, link-local, reserved, 0.0.0.0/8 or broadcast block, are counted
// as ignored. Accepted addresses keep their input order and duplicates are
// kept.
package targets

import (
	"bufio"
	"io"
	"net"
	"net/netip"
	"os"
	"strings"
	"sync"

	"github.com/anstrom/scanfinder/internal/errors"
	"github.com/anstrom/scanfinder/internal/logging"
)

const maxLineBytes = 1024 * 1024

// List is the outcome of sanitizing one input source.
type List struct {
	// Addresses holds accepted addresses in first-seen order.
	Addresses []string
	// Ignored counts lines dropped for parse failure or exclusion.
	Ignored int
	// IgnoredByReason breaks Ignored down by rejection reason.
	IgnoredByReason map[Reason]int
}

// Accepted returns the number of accepted addresses.
func (l *List) Accepted() int {
	return len(l.Addresses)
}

// Sanitizer filters address lists against an exclusion table.
type Sanitizer struct {
	exclusions *Exclusions
}

// NewSanitizer creates a sanitizer with the standard exclusion table.
func NewSanitizer() (*Sanitizer, error) {
	x, err := NewExclusions()
	if err != nil {
		return nil, err
	}
	return &Sanitizer{exclusions: x}, nil
}

var defaultSanitizer = sync.OnceValue(func() *Sanitizer {
	s, err := NewSanitizer()
	if err != nil {
		panic(err)
	}
	return s
})

// Sanitize filters r with the standard exclusion table.
func Sanitize(r io.Reader) (*List, error) {
	return defaultSanitizer().Sanitize(r)
}

// LoadFile opens path and sanitizes its contents.
func LoadFile(path string) (*List, error) {
	return defaultSanitizer().LoadFile(path)
}

// LoadFile opens path and sanitizes its contents. A missing file and an
// unreadable file are reported with distinct error codes.
func (s *Sanitizer) LoadFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileError(errors.CodeFileNotFound, "file not found", path, err)
		}
		return nil, errors.NewFileError(errors.CodeFileRead, "failed to open input file", path, err)
	}
	defer f.Close()

	list, err := s.Sanitize(f)
	if err != nil {
		return nil, errors.NewFileError(errors.CodeFileRead, "failed to read input file", path, err)
	}

	logging.Info("Sanitized address list",
		"path", path,
		"accepted", list.Accepted(),
		"ignored", list.Ignored)

	return list, nil
}

// Sanitize reads r line by line. Only a read failure is returned as an error;
// malformed or excluded lines are counted in List.Ignored.
func (s *Sanitizer) Sanitize(r io.Reader) (*List, error) {
	list := &List{
		Addresses:       make([]string, 0),
		IgnoredByReason: make(map[Reason]int),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineBytes)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		addr, reason := s.Check(strings.Fields(line)[0])
		if reason != ReasonNone {
			list.Ignored++
			list.IgnoredByReason[reason]++
			continue
		}
		list.Addresses = append(list.Addresses, addr)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// Check validates a single candidate token. It returns the port-stripped
// address and ReasonNone when the address is scannable.
func (s *Sanitizer) Check(token string) (string, Reason) {
	candidate := stripPort(token)

	addr, err := netip.ParseAddr(candidate)
	if err != nil {
		return "", ReasonInvalid
	}

	if reason := s.exclusions.Classify(addr); reason != ReasonNone {
		return "", reason
	}
	return candidate, ReasonNone
}

// stripPort removes a trailing port from "a.b.c.d:port" and "[v6]:port"
// forms. Bare IPv6 addresses are returned untouched. For IPv4 tokens anything
// from the first colon on is dropped, so "10.0.0.1:80:90" yields "10.0.0.1".
func stripPort(token string) string {
	if _, err := netip.ParseAddr(token); err == nil {
		return token
	}
	if host, _, err := net.SplitHostPort(token); err == nil {
		return host
	}
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		return token[1 : len(token)-1]
	}
	if i := strings.IndexByte(token, ':'); i > 0 && strings.Contains(token[:i], ".") {
		return token[:i]
	}
	return token
}
