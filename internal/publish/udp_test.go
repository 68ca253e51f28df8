package publish

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"gnss-clock/internal/events"
)

type fakeConn struct {
	writes   [][]byte
	writeErr error
	closed   bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestNewUDPSink_DialsResolvedAddr(t *testing.T) {
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		require.Equal(t, "udp", network)
		gotRaddr = raddr
		return fc, nil
	}

	s, err := newUDPSink("127.0.0.1:4000", net.ResolveUDPAddr, dial)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:4000", s.Dest())
	require.Equal(t, 4000, gotRaddr.Port)
	require.True(t, gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)))

	require.NoError(t, s.Close())
	require.True(t, fc.closed)
}

func TestNewUDPSink_Failures(t *testing.T) {
	resolveErr := errors.New("nope")
	_, err := newUDPSink("bad:addr",
		func(string, string) (*net.UDPAddr, error) { return nil, resolveErr },
		func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) { return &fakeConn{}, nil })
	require.ErrorIs(t, err, resolveErr)

	dialErr := errors.New("no route")
	_, err = newUDPSink("127.0.0.1:4000", net.ResolveUDPAddr,
		func(string, *net.UDPAddr, *net.UDPAddr) (udpConn, error) { return nil, dialErr })
	require.ErrorIs(t, err, dialErr)
}

func TestUDPSink_PublishOneDatagramPerEvent(t *testing.T) {
	fc := &fakeConn{}
	s := &UDPSink{dest: "x", conn: fc}

	require.NoError(t, s.Publish(events.Event{Kind: events.Button3Pressed}))
	require.NoError(t, s.Publish(events.Event{Kind: events.TimePulse}))
	require.Len(t, fc.writes, 2)
	require.JSONEq(t, `{"kind":"button3_pressed"}`, string(fc.writes[0]))

	fc.writeErr = errors.New("refused")
	require.ErrorIs(t, s.Publish(events.Event{Kind: events.TimePulse}), fc.writeErr)
}

func TestUDPSink_Loopback(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	s, err := NewUDPSink(pc.LocalAddr().String())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Publish(events.Event{Kind: events.Button5Pressed}))

	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	require.JSONEq(t, `{"kind":"button5_pressed"}`, string(buf[:n]))
}
