package localsvc

import (
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"tunneld/util"
)

const probeTimeout = 2 * time.Second

// probeTCP reports whether something is accepting connections on the
// given local port.
func probeTCP(host string, port int) error {
	conn, err := net.DialTimeout("tcp", util.FormatAddr(host, port), probeTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// probeSSH verifies a live SSH server by running the protocol
// handshake against it.  No credentials are offered, so a healthy
// server answers with an authentication failure — reaching that point
// proves the daemon is up and speaking SSH.
func probeSSH(port int) error {
	cfg := &ssh.ClientConfig{
		User:            "probe",
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         probeTimeout,
	}
	client, err := ssh.Dial("tcp", util.FormatAddr(relayLocalHost, port), cfg)
	if err != nil {
		// x/crypto/ssh has no typed auth-failure error; the "unable to
		// authenticate" prefix from client_auth.go is the only stable
		// marker that the handshake got as far as authentication.
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil
		}
		return err
	}
	// A server that accepts an empty auth attempt is still a live server.
	return client.Close()
}
