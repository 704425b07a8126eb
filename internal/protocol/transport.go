package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// maxDatagram is the read buffer size for UDP replies. Game servers keep
// replies under the common 1400-byte MTU budget, but a few directory replies
// run larger.
const maxDatagram = 65536

// udpSession is one connected UDP socket with the context deadline applied.
// Game protocols often need several request/reply exchanges on the same
// socket (challenge handshakes, multi-packet replies).
type udpSession struct {
	conn net.Conn
}

func dialUDP(ctx context.Context, ep Endpoint) (*udpSession, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", ep.Addr())
	if err != nil {
		return nil, probe.WrapTransport(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return &udpSession{conn: conn}, nil
}

func (s *udpSession) Close() error { return s.conn.Close() }

func (s *udpSession) Send(payload []byte) error {
	if _, err := s.conn.Write(payload); err != nil {
		return probe.WrapTransport(err)
	}
	return nil
}

func (s *udpSession) Receive() ([]byte, error) {
	buf := make([]byte, maxDatagram)
	n, err := s.conn.Read(buf)
	if err != nil {
		return nil, probe.WrapTransport(err)
	}
	return buf[:n], nil
}

// RoundTrip sends one datagram and returns the next reply.
func (s *udpSession) RoundTrip(payload []byte) ([]byte, error) {
	if err := s.Send(payload); err != nil {
		return nil, err
	}
	return s.Receive()
}

// udpRoundTrip is the single-exchange shortcut for protocols that need no
// session state.
func udpRoundTrip(ctx context.Context, ep Endpoint, payload []byte) ([]byte, error) {
	session, err := dialUDP(ctx, ep)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	return session.RoundTrip(payload)
}

// dialTCP opens a TCP connection with the context deadline applied.
func dialTCP(ctx context.Context, ep Endpoint) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, probe.WrapTransport(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// resolveIP resolves host to its first IPv4/IPv6 address. Directory-backed
// strategies match snapshots by literal ip, not hostname.
func resolveIP(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return "", probe.WrapTransport(fmt.Errorf("resolve %s: %w", host, err))
	}
	return addrs[0], nil
}

// pingTimer measures the probe round-trip time in milliseconds.
type pingTimer struct {
	start time.Time
}

func startPing() pingTimer { return pingTimer{start: time.Now()} }

func (t pingTimer) Millis() int { return int(time.Since(t.start).Milliseconds()) }

// packetReader walks a binary reply. All read failures surface as a single
// truncation error; protocols wrap it with probe.WrapProtocol.
type packetReader struct {
	buf *bytes.Reader
	err error
}

func newPacketReader(b []byte) *packetReader {
	return &packetReader{buf: bytes.NewReader(b)}
}

var errTruncated = fmt.Errorf("truncated reply")

func (r *packetReader) fail() {
	if r.err == nil {
		r.err = errTruncated
	}
}

func (r *packetReader) Err() error { return r.err }

func (r *packetReader) Remaining() int { return r.buf.Len() }

func (r *packetReader) Byte() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.buf.ReadByte()
	if err != nil {
		r.fail()
		return 0
	}
	return b
}

func (r *packetReader) Bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	out := make([]byte, n)
	if _, err := r.buf.Read(out); err != nil {
		r.fail()
		return nil
	}
	return out
}

func (r *packetReader) Uint16() uint16 {
	if r.err != nil {
		return 0
	}
	var v uint16
	if err := binary.Read(r.buf, binary.LittleEndian, &v); err != nil {
		r.fail()
		return 0
	}
	return v
}

func (r *packetReader) Int32() int32 {
	if r.err != nil {
		return 0
	}
	var v int32
	if err := binary.Read(r.buf, binary.LittleEndian, &v); err != nil {
		r.fail()
		return 0
	}
	return v
}

func (r *packetReader) Uint64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	if err := binary.Read(r.buf, binary.LittleEndian, &v); err != nil {
		r.fail()
		return 0
	}
	return v
}

func (r *packetReader) Float32() float32 {
	if r.err != nil {
		return 0
	}
	var v float32
	if err := binary.Read(r.buf, binary.LittleEndian, &v); err != nil {
		r.fail()
		return 0
	}
	return v
}

// CString reads a NUL-terminated string.
func (r *packetReader) CString() string {
	if r.err != nil {
		return ""
	}
	var out []byte
	for {
		b, err := r.buf.ReadByte()
		if err != nil {
			r.fail()
			return ""
		}
		if b == 0 {
			return string(out)
		}
		out = append(out, b)
	}
}
