// Package udp moves best-effort datagrams over a UDP socket.
//
// UDP offers no delivery guarantee, so Conn only implements
// transport.Transport and sessions interpose the reliable engine on top.
package udp

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/wick3dr0se/wrym/pkg/transport"
	"github.com/wick3dr0se/wrym/pkg/wlog"
	"golang.org/x/net/ipv4"
)

// MaxDatagramSize is the largest payload read from the socket.
const MaxDatagramSize = 65507

type Config struct {
	InboxSize int
	Logger    wlog.Logger

	// DSCP marks outgoing packets with the given differentiated services
	// code point. Zero leaves the socket default.
	DSCP int
}

// Conn is a UDP socket. A listening Conn talks to any address, a dialed Conn
// only to its server and reports inbound packets under the dialed address.
type Conn struct {
	conn   *net.UDPConn
	remote string
	inbox  *transport.Inbox
	logger wlog.Logger

	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	readDone  chan struct{}
}

var _ transport.Transport = (*Conn)(nil)

// Listen binds a socket on addr.
func Listen(addr string, cfg Config) (*Conn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return newConn(conn, "", cfg), nil
}

// Dial opens a socket connected to addr.
func Dial(addr string, cfg Config) (*Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return newConn(conn, addr, cfg), nil
}

func newConn(conn *net.UDPConn, remote string, cfg Config) *Conn {
	c := &Conn{
		conn:     conn,
		remote:   remote,
		inbox:    transport.NewInbox(cfg.InboxSize),
		logger:   wlog.OrNop(cfg.Logger),
		readDone: make(chan struct{}),
	}

	if cfg.DSCP > 0 {
		if err := setDSCP(conn, cfg.DSCP); err != nil {
			c.logger.Warn("failed to set dscp", "dscp", cfg.DSCP, "error", err)
		}
	}

	go c.readPump()
	return c
}

func setDSCP(conn *net.UDPConn, dscp int) error {
	if dscp < 0 || dscp > 63 {
		return fmt.Errorf("dscp %d out of range", dscp)
	}
	return ipv4.NewConn(conn).SetTOS(dscp << 2)
}

func (c *Conn) readPump() {
	defer close(c.readDone)

	buf := make([]byte, MaxDatagramSize)
	for {
		n, from, err := c.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			c.logger.Debug("udp read failed", "error", err)
			continue
		}
		if n == 0 {
			continue
		}

		addr := c.remote
		if addr == "" {
			addr = netip.AddrPortFrom(from.Addr().Unmap(), from.Port()).String()
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if !c.inbox.Push(transport.Packet{Addr: addr, Data: data}) {
			c.dropped.Add(1)
		}
	}
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Dropped returns the number of datagrams discarded because the inbox was full.
func (c *Conn) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Conn) Poll() {}

func (c *Conn) Receive() (transport.Packet, bool) {
	return c.inbox.Receive()
}

// Send writes one datagram. r is ignored.
func (c *Conn) Send(addr string, data []byte, _ transport.Reliability) error {
	if c.closed.Load() {
		return transport.ErrClosed
	}

	if c.remote != "" {
		if addr != c.remote {
			return transport.ErrPeerNotFound{Addr: addr}
		}
		_, err := c.conn.Write(data)
		return err
	}

	dst, err := netip.ParseAddrPort(addr)
	if err != nil {
		ua, rerr := net.ResolveUDPAddr("udp", addr)
		if rerr != nil {
			return transport.ErrPeerNotFound{Addr: addr}
		}
		dst = ua.AddrPort()
	}

	_, err = c.conn.WriteToUDPAddrPort(data, dst)
	return err
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.conn.Close()
		<-c.readDone
	})
	return err
}
