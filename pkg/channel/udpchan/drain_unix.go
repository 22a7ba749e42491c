//go:build linux || darwin || freebsd

package udpchan

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/msgchan/pkg/log"
)

// drainHellos answers the hellos queued on a server socket without
// blocking. A server that only writes never calls receive, so a client whose
// hello ack was lost would otherwise retry until it gives up.
func (e *endpoint) drainHellos() {
	conn := e.conn.Load()
	if conn == nil {
		return
	}
	raw, err := conn.SyscallConn()
	if err != nil {
		return
	}
	for {
		var (
			n    int
			from unix.Sockaddr
			rerr error
		)
		err := raw.Read(func(fd uintptr) bool {
			n, from, rerr = unix.Recvfrom(int(fd), e.rbuf, unix.MSG_DONTWAIT)
			return true
		})
		// EAGAIN ends the drain.
		if err != nil || rerr != nil {
			return
		}

		p, err := decodePacket(e.rbuf[:n], e.cfg.MaxMessageSize)
		if err != nil || !p.control() || p.seq != seqHello {
			continue
		}
		if addr := udpAddr(from); addr != nil {
			e.peer = addr
		}
		if err := e.sendControl(seqHelloAck); err != nil {
			e.logger.Warn("udp hello answer failed", log.Transport("udp"), log.Err(err))
			return
		}
		e.logger.Debug("udp hello answered while writing", log.Transport("udp"), log.Any("peer", e.peer))
	}
}

func udpAddr(sa unix.Sockaddr) *net.UDPAddr {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, net.IPv4len)
		copy(ip, a.Addr[:])
		return &net.UDPAddr{IP: ip, Port: a.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, a.Addr[:])
		addr := &net.UDPAddr{IP: ip, Port: a.Port}
		if a.ZoneId != 0 {
			if ifi, err := net.InterfaceByIndex(int(a.ZoneId)); err == nil {
				addr.Zone = ifi.Name
			}
		}
		return addr
	}
	return nil
}
