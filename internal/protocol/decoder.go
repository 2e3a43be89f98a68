package protocol

import (
	"bytes"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MaxArgs    = 1024 * 1024
	MaxBulkLen = 512 * 1024 * 1024
	// MaxLineLen bounds a header line that has not been terminated yet.
	MaxLineLen = 64 * 1024
)

var crlf = []byte("\r\n")

// Decode extracts the first complete frame from buf with a fresh Decoder.
// It suits one-shot decoding; a stream should keep one Decoder so partial
// frames are not parsed again on every call.
func Decode(buf []byte) (Command, int, error) {
	var d Decoder
	return d.Decode(buf)
}

type span struct {
	off, n int
}

// Decoder decodes a stream of frames. It remembers how far it got into a
// partial frame, so every call must pass the undropped bytes starting at
// the same place: the caller drops exactly the n returned and nothing else.
// The zero value is ready to use.
type Decoder struct {
	// Frame in progress. Offsets are relative to its first byte.
	argc     int
	pos      int
	args     []span
	bulkLen  int
	scanFrom int

	// After a malformed frame, input is dropped until a line opens an array.
	discarding bool
	prevNL     bool
}

// Decode returns the next command in buf and the number of bytes to drop.
//
// ErrIncomplete means buf ends mid-frame; n is then the count of junk
// bytes skipped after an earlier malformed frame, usually 0. Any other
// error is a *ProtocolError and n > 0: the caller drops n bytes, reports
// the error to the peer and keeps decoding.
func (d *Decoder) Decode(buf []byte) (Command, int, error) {
	skipped := 0
	if d.discarding {
		n, found := d.skip(buf)
		if !found {
			return Command{}, n, ErrIncomplete
		}
		skipped = n
		buf = buf[n:]
	}
	if len(buf) == 0 {
		return Command{}, skipped, ErrIncomplete
	}

	args, n, err := d.readFrame(buf)
	if err != nil {
		if !errors.Is(err, ErrMalformed) {
			return Command{}, skipped, err
		}
		d.reset()
		d.discarding = true
		d.prevNL = n > 0 && buf[n-1] == '\n'
		m, _ := d.skip(buf[n:])
		return Command{}, skipped + n + m, err
	}
	cmd, err := parseCommand(args)
	d.reset()
	return cmd, skipped + n, err
}

// skip drops bytes up to a '*' that starts a line. found reports whether
// one was seen; n excludes it.
func (d *Decoder) skip(buf []byte) (n int, found bool) {
	for i, b := range buf {
		if b == '*' && (i == 0 && d.prevNL || i > 0 && buf[i-1] == '\n') {
			d.discarding = false
			return i, true
		}
	}
	if len(buf) > 0 {
		d.prevNL = buf[len(buf)-1] == '\n'
	}
	return len(buf), false
}

func (d *Decoder) reset() {
	d.argc = 0
	d.pos = 0
	d.bulkLen = -1
	d.scanFrom = 0
	if cap(d.args) > 1024 {
		d.args = nil
	} else {
		d.args = d.args[:0]
	}
}

// readFrame returns the arguments of one array-of-bulk-strings frame,
// picking up where the previous call stopped. The returned slices alias
// buf. On ErrMalformed, n is the offset just past the point where the
// frame went wrong.
func (d *Decoder) readFrame(buf []byte) (args [][]byte, n int, err error) {
	if d.argc == 0 {
		line, next, err := d.readLine(buf, 0)
		if err != nil {
			return nil, next, err
		}
		argc, err := readLength(line, '*')
		if err != nil {
			return nil, next, err
		}
		if argc < 1 || argc > MaxArgs {
			return nil, next, malformed("invalid multibulk length")
		}
		d.argc = argc
		d.pos = next
		d.bulkLen = -1
	}

	for len(d.args) < d.argc {
		if d.bulkLen < 0 {
			line, next, err := d.readLine(buf, d.pos)
			if err != nil {
				return nil, next, err
			}
			size, err := readLength(line, '$')
			if err != nil {
				return nil, next, err
			}
			if size < 0 || size > MaxBulkLen {
				return nil, next, malformed("invalid bulk length")
			}
			d.pos = next
			d.bulkLen = size
		}

		pos, size := d.pos, d.bulkLen
		avail := len(buf) - pos
		if avail > size && buf[pos+size] != '\r' || avail > size+1 && buf[pos+size+1] != '\n' {
			return nil, pos + size, malformed("expected CRLF after bulk payload")
		}
		if avail < size+2 {
			return nil, 0, ErrIncomplete
		}
		d.args = append(d.args, span{off: pos, n: size})
		d.pos = pos + size + 2
		d.bulkLen = -1
	}

	args = make([][]byte, len(d.args))
	for i, a := range d.args {
		args[i] = buf[a.off : a.off+a.n]
	}
	return args, d.pos, nil
}

// readLine returns the line starting at pos without its CRLF, and the
// offset of the next line. Bytes already searched by an earlier call are
// not searched again.
func (d *Decoder) readLine(buf []byte, pos int) ([]byte, int, error) {
	from := max(pos, d.scanFrom)
	idx := bytes.Index(buf[from:], crlf)
	if idx < 0 {
		if len(buf)-pos > MaxLineLen {
			return nil, len(buf), malformed("line too long")
		}
		// A trailing '\r' may be half of the terminator.
		d.scanFrom = max(pos, len(buf)-1)
		return nil, 0, ErrIncomplete
	}
	end := from + idx
	d.scanFrom = 0
	if end-pos > MaxLineLen {
		return nil, end + 2, malformed("line too long")
	}
	return buf[pos:end], end + 2, nil
}

func readLength(line []byte, prefix byte) (int, error) {
	if len(line) == 0 {
		return 0, malformed("expected '%c', got empty line", prefix)
	}
	if line[0] != prefix {
		return 0, malformed("expected '%c', got '%c'", prefix, line[0])
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		if prefix == '*' {
			return 0, malformed("invalid multibulk length")
		}
		return 0, malformed("invalid bulk length")
	}
	return n, nil
}

func parseCommand(args [][]byte) (Command, error) {
	name := string(args[0])
	switch strings.ToUpper(name) {
	case "PING":
		if len(args) != 1 {
			return Command{}, wrongArity(CmdPing)
		}
		return Command{Type: CmdPing}, nil
	case "ECHO":
		if len(args) != 2 {
			return Command{}, wrongArity(CmdEcho)
		}
		return Command{Type: CmdEcho, Value: clone(args[1])}, nil
	case "GET":
		if len(args) != 2 {
			return Command{}, wrongArity(CmdGet)
		}
		return Command{Type: CmdGet, Key: string(args[1])}, nil
	case "SET":
		return parseSet(args)
	default:
		return Command{}, unknownCommand(name)
	}
}

func parseSet(args [][]byte) (Command, error) {
	if len(args) != 3 && len(args) != 5 {
		return Command{}, wrongArity(CmdSet)
	}
	cmd := Command{Type: CmdSet, Key: string(args[1]), Value: clone(args[2])}
	if len(args) == 3 {
		return cmd, nil
	}
	if !strings.EqualFold(string(args[3]), "PX") {
		return Command{}, invalidArgument("syntax error")
	}
	ms, err := strconv.ParseInt(string(args[4]), 10, 64)
	if err != nil {
		return Command{}, invalidArgument("value is not an integer or out of range")
	}
	if ms <= 0 || ms > math.MaxInt64/int64(time.Millisecond) {
		return Command{}, invalidArgument("invalid expire time in 'set' command")
	}
	cmd.TTL = time.Duration(ms) * time.Millisecond
	return cmd, nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
