// Package netutil provides small networking helpers for the launcher.
package netutil

import (
	"fmt"
	"net"
)

// AllocatePort obtains an ephemeral, currently-unused TCP port on the
// loopback interface by binding port 0 and immediately releasing the
// listener. Best-effort only: another process can grab the port between
// the release and the sidecar binding it. That race is accepted; a
// collision surfaces later as a failed health check.
func AllocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("bind loopback: %w", err)
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", l.Addr())
	}

	return addr.Port, nil
}

// BaseURL builds the loopback origin for an allocated port.
func BaseURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
