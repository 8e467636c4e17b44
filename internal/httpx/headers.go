package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// MaxHeadBytes bounds a response header block read by ReadHead.
	MaxHeadBytes = 64 * 1024
	readChunk    = 4096
)

var (
	ErrIncompleteHead = errors.New("connection closed before end of header")
	ErrHeadTooLarge   = errors.New("header too large")
	ErrStatusLine     = errors.New("bad status line")

	crlf    = []byte("\r\n")
	headEnd = []byte("\r\n\r\n")
)

// Header represents a single HTTP header field (case preserved as seen on wire).
type Header struct {
	Name  string
	Value string
}

func get(hs []Header, name string) string {
	for _, h := range hs {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// RequestHead is an HTTP/1.x start-line plus headers written in insertion order.
type RequestHead struct {
	Method  string
	URI     string
	Proto   string
	Headers []Header
}

// Add appends a header (does not replace existing).
func (p *RequestHead) Add(name, value string) {
	p.Headers = append(p.Headers, Header{Name: name, Value: value})
}

// Get returns the first value associated with name (case-insensitive) or empty.
func (p *RequestHead) Get(name string) string { return get(p.Headers, name) }

// Bytes renders the request head terminated by an empty line.
func (p *RequestHead) Bytes() []byte {
	var b bytes.Buffer
	_, _ = p.WriteTo(&b)
	return b.Bytes()
}

// WriteTo streams the start-line and headers to w, CRLF terminated, followed by the blank line.
func (p *RequestHead) WriteTo(w io.Writer) (int64, error) {
	var total int64
	write := func(s string) error {
		n, err := io.WriteString(w, s)
		total += int64(n)
		return err
	}
	if err := write(fmt.Sprintf("%s %s %s\r\n", p.Method, p.URI, p.Proto)); err != nil {
		return total, err
	}
	for _, h := range p.Headers {
		if err := write(h.Name + ": " + h.Value + "\r\n"); err != nil {
			return total, err
		}
	}
	if err := write("\r\n"); err != nil {
		return total, err
	}
	return total, nil
}

// ResponseHead is a parsed status line plus headers. Raw is the header block as received,
// without the terminating blank line.
type ResponseHead struct {
	Proto   string
	Code    int
	Reason  string
	Headers []Header
	Raw     []byte
}

// Get returns the first value associated with name (case-insensitive) or empty.
func (p *ResponseHead) Get(name string) string { return get(p.Headers, name) }

// ReadHead reads raw chunks from r until CRLF CRLF has been seen. It returns the header
// block and any bytes that arrived after it in the same reads. Reads stop at the
// terminator, so nothing past rest is consumed from r.
func ReadHead(r io.Reader, max int) (head, rest []byte, err error) {
	buf := make([]byte, 0, readChunk)
	tmp := make([]byte, readChunk)
	for {
		n, rerr := r.Read(tmp)
		if n > 0 {
			from := len(buf) - len(headEnd) + 1
			if from < 0 {
				from = 0
			}
			buf = append(buf, tmp[:n]...)
			if idx := bytes.Index(buf[from:], headEnd); idx != -1 {
				idx += from
				head = buf[:idx]
				rest = append([]byte(nil), buf[idx+len(headEnd):]...)
				return head, rest, nil
			}
			if max > 0 && len(buf) > max {
				return nil, nil, fmt.Errorf("%w (%d>%d)", ErrHeadTooLarge, len(buf), max)
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil, nil, ErrIncompleteHead
			}
			return nil, nil, rerr
		}
	}
}

// ParseResponseHead parses a header block as returned by ReadHead. The status line is
// decoded leniently: non-ASCII bytes are dropped before splitting on whitespace.
func ParseResponseHead(head []byte) (*ResponseHead, error) {
	first, remaining, _ := bytes.Cut(head, crlf)
	proto, code, reason, err := ParseStatusLine(asciiOnly(first))
	if err != nil {
		return nil, err
	}
	ph := &ResponseHead{Proto: proto, Code: code, Reason: reason, Raw: append([]byte(nil), head...)}
	for _, line := range bytes.Split(remaining, crlf) {
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			continue // skip malformed
		}
		ph.Headers = append(ph.Headers, Header{
			Name:  string(line[:colon]),
			Value: strings.TrimSpace(string(line[colon+1:])),
		})
	}
	return ph, nil
}

// ParseStatusLine splits "<proto> <code> <reason...>". The reason may be empty.
func ParseStatusLine(line string) (proto string, code int, reason string, err error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", 0, "", fmt.Errorf("%w: %q", ErrStatusLine, line)
	}
	code, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: invalid status code in %q", ErrStatusLine, line)
	}
	return parts[0], code, strings.Join(parts[2:], " "), nil
}

func asciiOnly(b []byte) string {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c < 0x80 {
			out = append(out, c)
		}
	}
	return string(out)
}
