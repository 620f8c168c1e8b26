// Package ca implements the Client Proxy (spec §5): a thin, stateless
// wrapper over the UDS transport that opens one connection per logical
// session, invokes commands, and closes. It is the Client-side mirror of
// internal/ta's Server, grounded the same way the teacher dials its own
// UDS signer socket in internal/signer/integration_test.go.
package ca

import (
	"fmt"
	"net"
	"time"

	"github.com/AAStarCommunity/AirAccount-sub000/internal/taerr"
	"github.com/AAStarCommunity/AirAccount-sub000/internal/taproto"
)

// Client holds one open session against a TA listening on a UDS socket.
type Client struct {
	conn net.Conn
}

// Open dials socketPath and establishes a session. The TA treats the new
// connection itself as the OpenSession call.
func Open(socketPath string, dialTimeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("ca: dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Invoke sends one command with its input and a declared output
// capacity, returning the output bytes and the resulting error kind. A
// ShortBuffer kind carries the required size in the returned error so
// the caller can retry with a bigger capacity, per spec §4.1's two-phase
// probe pattern.
func (c *Client) Invoke(cmd taproto.CommandID, input []byte, outputCapMax uint32) ([]byte, error) {
	if err := taproto.WriteRequest(c.conn, taproto.Request{Command: cmd, Input: input, OutputCapMax: outputCapMax}); err != nil {
		return nil, fmt.Errorf("ca: write request: %w", err)
	}
	resp, err := taproto.ReadResponse(c.conn)
	if err != nil {
		return nil, fmt.Errorf("ca: read response: %w", err)
	}

	kind := taerr.Kind(resp.Status)
	if kind == taerr.KindOK {
		return resp.Output, nil
	}
	if kind == taerr.KindShortBuffer {
		return nil, taerr.ShortBuffer(resp.ReqSize)
	}
	return nil, taerr.New(kind, fmt.Sprintf("ta returned %s", kind))
}

// InvokeWithRetry calls Invoke, and on ShortBuffer retries exactly once
// with a capacity equal to the required size the TA reported.
func (c *Client) InvokeWithRetry(cmd taproto.CommandID, input []byte, initialCap uint32) ([]byte, error) {
	out, err := c.Invoke(cmd, input, initialCap)
	te := taerr.As(err)
	if err != nil && te.Kind == taerr.KindShortBuffer {
		return c.Invoke(cmd, input, te.RequiredSize)
	}
	return out, err
}

// Close ends the session by closing the underlying connection, which the
// TA observes as an implicit CloseSession.
func (c *Client) Close() error {
	return c.conn.Close()
}
