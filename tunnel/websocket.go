package tunnel

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tunneld/internal/errors"
	"tunneld/internal/transport"
	"tunneld/util"
)

const (
	proxyPort      = 443
	wsSubprotocol  = "aws.iot.securetunneling-3.0"
	accessTokenHdr = "access-token"
	wsReadLimit    = 4 * 1024 * 1024
)

// WSSession is a tunnel session carried over a secure websocket to the
// proxy endpoint, forwarding a single destination TCP service.
type WSSession struct {
	id     ID
	params Params
	dialer transport.Dialer
	log    *util.Logger

	rootCA           string
	handshakeTimeout time.Duration

	ws   *websocket.Conn
	dest net.Conn

	stopOnce  sync.Once
	closeOnce sync.Once
}

// WSConfig tunes the websocket session beyond its Params.
type WSConfig struct {
	RootCA  string // optional trust bundle for the proxy TLS handshake
	Timeout time.Duration
	Logger  *util.Logger
}

// NewWSSession builds a websocket-backed session.  Nothing is dialed
// until Connect.
func NewWSSession(id ID, p Params, cfg WSConfig) *WSSession {
	return &WSSession{
		id:               id,
		params:           p,
		dialer:           &transport.TCPDialer{Timeout: cfg.Timeout},
		log:              cfg.Logger,
		rootCA:           cfg.RootCA,
		handshakeTimeout: cfg.Timeout,
	}
}

// ID returns the session handle.
func (s *WSSession) ID() ID { return s.id }

// Connect dials the proxy endpoint and the local destination.  On
// success the forwarding loops run until either side closes, then the
// close callback fires.  On error nothing is left running and the
// callback never fires.
func (s *WSSession) Connect(ctx context.Context) error {
	u := url.URL{
		Scheme:   "wss",
		Host:     util.FormatAddr(s.params.EndpointHost, proxyPort),
		Path:     "/tunnel",
		RawQuery: "local-proxy-mode=destination",
	}

	tlsCfg, err := s.tlsConfig()
	if err != nil {
		return &errors.SessionError{Op: "dial-proxy", Endpoint: u.Host, Err: err}
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: s.handshakeTimeout,
		Subprotocols:     []string{wsSubprotocol},
		TLSClientConfig:  tlsCfg,
	}
	header := http.Header{accessTokenHdr: []string{s.params.AccessToken}}

	ws, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return &errors.SessionError{Op: "dial-proxy", Endpoint: u.Host, Err: err}
	}
	ws.SetReadLimit(wsReadLimit)

	destAddr := util.FormatAddr(s.params.DestinationAddress, s.params.DestinationPort)
	dest, err := s.dialer.Dial(ctx, "tcp", destAddr)
	if err != nil {
		_ = ws.Close()
		return &errors.SessionError{Op: "dial-destination", Endpoint: destAddr, Err: err}
	}

	s.ws = ws
	s.dest = dest
	s.log.Info("tunnel session %d connected: %s -> %s", s.id, u.Host, destAddr)

	go s.pumpToDestination()
	go s.pumpFromDestination()
	return nil
}

// Stop requests shutdown by closing both legs; the forwarding loops
// notice and fire the close callback.
func (s *WSSession) Stop() {
	s.stopOnce.Do(func() {
		s.log.Debug("stopping session %d", s.id)
		if s.ws != nil {
			deadline := time.Now().Add(time.Second)
			_ = s.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = s.ws.Close()
		}
		if s.dest != nil {
			_ = s.dest.Close()
		}
	})
}

func (s *WSSession) tlsConfig() (*tls.Config, error) {
	if s.rootCA == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(s.rootCA)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(pem)
	return &tls.Config{RootCAs: pool}, nil
}

// pumpToDestination copies proxy frames to the destination socket.
func (s *WSSession) pumpToDestination() {
	defer s.closed()
	for {
		mt, data, err := s.ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		if _, err := s.dest.Write(data); err != nil {
			return
		}
	}
}

// pumpFromDestination copies destination bytes to the proxy as binary
// frames.
func (s *WSSession) pumpFromDestination() {
	defer s.closed()
	buf := make([]byte, 32*1024)
	for {
		n, err := s.dest.Read(buf)
		if n > 0 {
			if werr := s.ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.log.Debug("session %d destination read: %v", s.id, err)
			}
			return
		}
	}
}

// closed tears down both legs and reports the end of the session
// exactly once, on the first pump to exit.
func (s *WSSession) closed() {
	s.closeOnce.Do(func() {
		s.Stop()
		s.log.Info("tunnel session %d closed", s.id)
		if s.params.OnClosed != nil {
			s.params.OnClosed(s.id)
		}
	})
}
