// Package netutil picks a listen address for the coordinator.
package netutil

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoBindAddr means neither the preferred address nor any candidate was free.
var ErrNoBindAddr = errors.New("netutil: no free coordinator bind address")

// SelectBindAddr returns preferred when it can be listened on. Otherwise, if
// fallback is allowed, it returns the first free candidate.
func SelectBindAddr(preferred string, candidates []string, fallback bool) (string, error) {
	tried := make(map[string]bool, len(candidates)+1)
	if preferred != "" {
		tried[preferred] = true
		if IsAddrAvailable(preferred) {
			return preferred, nil
		}
		if !fallback {
			return "", fmt.Errorf("netutil: %s is in use", preferred)
		}
	}
	for _, addr := range candidates {
		if tried[addr] {
			continue
		}
		tried[addr] = true
		if IsAddrAvailable(addr) {
			return addr, nil
		}
	}
	return "", ErrNoBindAddr
}

// IsAddrAvailable reports whether addr can be listened on right now.
func IsAddrAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
