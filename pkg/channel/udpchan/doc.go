// Package udpchan implements the channel contract with one UDP datagram per
// frame.
//
// Every datagram carries a 12-byte header followed by the payload:
//
//	[ type:4 ][ sequence:4 ][ size:4 ][ payload ]
//
// Integers are big-endian. Type -1 is reserved for control packets: sequence
// -1 closes the stream, -2 is the client hello and -3 the server's reply.
//
// # Roles
//
// A server endpoint binds Config.Address and, during Open, waits for the
// client's hello to learn its peer. A client endpoint dials Config.Address
// and repeats the hello until the server answers, up to ConnectAttempts
// times spaced ConnectDelay apart. With MaxConnectDelay above ConnectDelay
// the spacing doubles after each attempt, with jitter, up to that cap.
// Either role can write or read; the role only decides who binds.
//
// A hello repeated after a lost answer is answered again: a reading server
// does so as it receives, a writing server drains pending hellos before each
// write and follows a client that reconnected from a new address.
//
// UDP gives no delivery guarantee. On loopback frames arrive in order and
// are not lost unless the receive buffer overflows.
package udpchan
