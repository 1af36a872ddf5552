// Package sdp renders and parses the narrow SDP subset described in the
// external interfaces contract: a single video media section carrying ICE
// credentials, a DTLS fingerprint, and a candidate line per local ICE
// candidate.
package sdp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roomrtc/corertc/internal/ice"
)

// Implements (in part) the line subset of RFC 4566 / RFC 3264 needed for the
// offer/answer exchange; not a general-purpose SDP library.

// Description is the in-memory form of the offer/answer SDP.
type Description struct {
	SessionID      uint64
	SessionVersion uint64
	IceUfrag       string
	IcePwd         string
	// Fingerprint is the value following "sha-256 ", i.e. the
	// colon-separated uppercase hex digest, with no "sha-256" prefix.
	Fingerprint string
	Candidates  []ice.Candidate
}

type parseError struct {
	which string
	value string
	cause error
}

func (e *parseError) Error() string {
	msg := fmt.Sprintf("sdp: invalid %s: %q", e.which, e.value)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

type writer struct {
	strings.Builder
}

func (w *writer) line(format string, args ...interface{}) {
	fmt.Fprintf(&w.Builder, format, args...)
	w.Builder.WriteString("\r\n")
}

// Render produces the SDP text for d, in the fixed line order the contract
// requires.
func Render(d Description) string {
	var w writer
	w.line("v=0")
	w.line("o=- %d %d IN IP4 0.0.0.0", d.SessionID, d.SessionVersion)
	w.line("t=0")
	w.line("m=video 9 RTP/SAVP 96")
	w.line("a=group:BUNDLE 0")
	w.line("a=msid-semantic:WMS")
	w.line("a=ice-ufrag:%s", d.IceUfrag)
	w.line("a=ice-pwd:%s", d.IcePwd)
	w.line("a=fingerprint:sha-256 %s", d.Fingerprint)
	for _, c := range d.Candidates {
		w.line("a=candidate:%s", c.SdpLine())
	}
	return w.String()
}

// Parse reads an SDP description, tolerant of attribute line ordering but
// strict about the v=/o=/t= prefix. Missing ice-ufrag, ice-pwd, fingerprint,
// or any candidate line is a parse error.
func Parse(text string) (Description, error) {
	var d Description

	line, rest, ok := nextLine(text)
	if !ok || line != "v=0" {
		return d, &parseError{"version line", line, nil}
	}

	line, rest, ok = nextLine(rest)
	if !ok || !strings.HasPrefix(line, "o=") {
		return d, &parseError{"origin line", line, nil}
	}
	if err := parseOrigin(line[2:], &d); err != nil {
		return d, &parseError{"origin", line, err}
	}

	line, rest, ok = nextLine(rest)
	if !ok || !strings.HasPrefix(line, "t=") {
		return d, &parseError{"time line", line, nil}
	}

	for rest != "" {
		line, rest, ok = nextLine(rest)
		if !ok {
			break
		}
		if err := parseAttributeLine(line, &d); err != nil {
			return d, err
		}
	}

	if d.IceUfrag == "" {
		return d, &parseError{"ice-ufrag", "", fmt.Errorf("missing")}
	}
	if d.IcePwd == "" {
		return d, &parseError{"ice-pwd", "", fmt.Errorf("missing")}
	}
	if d.Fingerprint == "" {
		return d, &parseError{"fingerprint", "", fmt.Errorf("missing")}
	}
	if len(d.Candidates) == 0 {
		return d, &parseError{"candidate", "", fmt.Errorf("missing")}
	}

	return d, nil
}

func parseOrigin(value string, d *Description) error {
	fields := strings.Fields(value)
	if len(fields) < 6 {
		return fmt.Errorf("expected 6 fields, got %d", len(fields))
	}
	id, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return err
	}
	ver, err := strconv.ParseUint(fields[2], 10, 64)
	if err != nil {
		return err
	}
	d.SessionID = id
	d.SessionVersion = ver
	return nil
}

func parseAttributeLine(line string, d *Description) error {
	if !strings.HasPrefix(line, "a=") {
		// m=, c=, i=, etc. -- not part of this subset, ignore.
		return nil
	}
	value := line[2:]
	switch {
	case strings.HasPrefix(value, "ice-ufrag:"):
		d.IceUfrag = strings.TrimPrefix(value, "ice-ufrag:")
	case strings.HasPrefix(value, "ice-pwd:"):
		d.IcePwd = strings.TrimPrefix(value, "ice-pwd:")
	case strings.HasPrefix(value, "fingerprint:"):
		fp := strings.TrimPrefix(value, "fingerprint:")
		fields := strings.SplitN(fp, " ", 2)
		if len(fields) != 2 || fields[0] != "sha-256" {
			return &parseError{"fingerprint", value, fmt.Errorf("unsupported hash")}
		}
		d.Fingerprint = fields[1]
	case strings.HasPrefix(value, "candidate:"):
		c, err := ice.ParseCandidateLine(strings.TrimPrefix(value, "candidate:"))
		if err != nil {
			return &parseError{"candidate", value, err}
		}
		d.Candidates = append(d.Candidates, c)
	}
	return nil
}

// nextLine splits off the first CRLF- or LF-terminated line of input,
// returning ok=false once input is exhausted.
func nextLine(input string) (line string, remainder string, ok bool) {
	if input == "" {
		return "", "", false
	}
	n := strings.IndexByte(input, '\n')
	if n == -1 {
		return strings.TrimRight(input, "\r"), "", true
	}
	line = input[:n]
	line = strings.TrimSuffix(line, "\r")
	remainder = input[n+1:]
	return line, remainder, true
}
