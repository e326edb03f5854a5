// Package pinger queries a server's status over the server list ping
// exchange.
package pinger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"ionic/internal/protocol"
	"ionic/internal/server"
	"ionic/internal/wire"
)

// DefaultPort is used when the address has none.
const DefaultPort = 25565

var ErrPayloadMismatch = errors.New("pinger: pong payload mismatch")

// Result is one status exchange.
type Result struct {
	Status  server.StatusDocument
	Raw     string
	Latency time.Duration
}

// Ping dials addr and runs a status exchange, bounded by timeout.
func Ping(ctx context.Context, addr string, timeout time.Duration) (Result, error) {
	host, port, err := splitAddr(addr)
	if err != nil {
		return Result{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return Result{}, fmt.Errorf("pinger: dial: %w", err)
	}
	defer c.Close()
	if deadline, ok := ctx.Deadline(); ok {
		c.SetDeadline(deadline)
	}
	return PingConn(c, host, port)
}

// PingConn runs the exchange on an open connection: handshake with next
// state status, status request, then a ping whose round trip is the
// reported latency.
func PingConn(c net.Conn, host string, port uint16) (Result, error) {
	reg := protocol.Default()
	r, w := wire.NewReader(c), wire.NewWriter(c)

	send := func(state protocol.State, p protocol.Packet) error {
		body, err := reg.MarshalServerbound(state, p)
		if err != nil {
			return err
		}
		return w.WriteBody(body)
	}
	recv := func() (protocol.Packet, error) {
		f, err := r.ReadFrame()
		if err != nil {
			return nil, err
		}
		return reg.DecodeClientbound(protocol.StateStatus, f.ID, f.Payload)
	}

	if err := send(protocol.StateHandshake, &protocol.Intention{
		ProtocolVersion: protocol.ProtocolVersion,
		Address:         host,
		Port:            port,
		NextState:       protocol.IntentStatus,
	}); err != nil {
		return Result{}, fmt.Errorf("pinger: handshake: %w", err)
	}
	if err := send(protocol.StateStatus, &protocol.StatusRequest{}); err != nil {
		return Result{}, fmt.Errorf("pinger: status request: %w", err)
	}
	p, err := recv()
	if err != nil {
		return Result{}, fmt.Errorf("pinger: status response: %w", err)
	}
	resp, ok := p.(*protocol.StatusResponse)
	if !ok {
		return Result{}, fmt.Errorf("pinger: unexpected %s", p.Name())
	}

	var res Result
	res.Raw = resp.JSON
	if err := json.Unmarshal([]byte(resp.JSON), &res.Status); err != nil {
		return res, fmt.Errorf("pinger: status json: %w", err)
	}

	start := time.Now()
	payload := start.UnixMilli()
	if err := send(protocol.StateStatus, &protocol.PingRequest{Payload: payload}); err != nil {
		return res, fmt.Errorf("pinger: ping: %w", err)
	}
	p, err = recv()
	if err != nil {
		return res, fmt.Errorf("pinger: pong: %w", err)
	}
	pong, ok := p.(*protocol.PongResponse)
	if !ok {
		return res, fmt.Errorf("pinger: unexpected %s", p.Name())
	}
	if pong.Payload != payload {
		return res, ErrPayloadMismatch
	}
	res.Latency = time.Since(start)
	return res, nil
}

func splitAddr(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given.
		return strings.Trim(addr, "[]"), DefaultPort, nil
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("pinger: bad port %q", portStr)
	}
	return host, uint16(port), nil
}
