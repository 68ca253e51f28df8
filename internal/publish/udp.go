package publish

import (
	"fmt"
	"net"

	"gnss-clock/internal/events"
)

type udpConn interface {
	Write([]byte) (int, error)
	Close() error
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

// UDPSink sends one JSON datagram per event.
type UDPSink struct {
	dest string
	conn udpConn
}

func NewUDPSink(dest string) (*UDPSink, error) {
	return newUDPSink(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newUDPSink(dest string, resolve resolveFunc, dial dialFunc) (*UDPSink, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("publish: resolve %s: %w", dest, err)
	}
	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("publish: dial udp %s: %w", dest, err)
	}
	return &UDPSink{dest: dest, conn: conn}, nil
}

func (s *UDPSink) Dest() string { return s.dest }

func (s *UDPSink) Publish(ev events.Event) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("publish: udp %s: %w", s.dest, err)
	}
	return nil
}

func (s *UDPSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
