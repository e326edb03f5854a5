package server

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ionic/internal/conn"
	"ionic/internal/dispatch"
	"ionic/internal/observability"
	"ionic/internal/protocol"
	"ionic/internal/text"
	"ionic/internal/wire"
)

var (
	ErrBadIntent      = errors.New("server: unknown next state")
	ErrBadUsername    = errors.New("server: invalid username")
	ErrVerifyMismatch = errors.New("server: verify token mismatch")
	ErrNoHello        = errors.New("server: key before hello")
	ErrNoProfile      = errors.New("server: login acknowledged before game profile")
	ErrDuplicateHello = errors.New("server: repeated hello")
)

const verifyTokenLen = 4

// loginState is what the reader goroutine remembers between hello and
// login_acknowledged.
type loginState struct {
	name  string
	id    uuid.UUID
	token []byte
	sent  bool // game_profile queued
}

// OfflineUUID derives the version 3 UUID vanilla servers assign to name in
// offline mode.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80
	id, _ := uuid.FromBytes(sum[:])
	return id
}

// ValidUsername reports whether name is 1-16 characters of [A-Za-z0-9_].
func ValidUsername(name string) bool {
	if len(name) == 0 || len(name) > 16 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

func (s *Server) registerLogin() error {
	d := s.dispatcher
	errs := []error{
		dispatch.On(d, protocol.StateHandshake, "intention", s.onIntention),
		dispatch.On(d, protocol.StateStatus, "status", s.onStatusRequest),
		dispatch.On(d, protocol.StateStatus, "ping", s.onPing),
		dispatch.On(d, protocol.StateLogin, "hello", s.onHello),
		dispatch.On(d, protocol.StateLogin, "key", s.onKey),
		dispatch.On(d, protocol.StateLogin, "custom_query_answer", s.onCustomQueryAnswer),
		dispatch.On(d, protocol.StateLogin, "login_acknowledged", s.onLoginAcknowledged),
	}
	return errors.Join(errs...)
}

// rejectLogin sends login_disconnect and closes once it is written.
func rejectLogin(c *conn.Connection, msg string, cause error) error {
	c.Disconnect(&protocol.LoginDisconnect{Reason: text.Plain(msg)}, reasonProtocol+cause.Error())
	return cause
}

func (s *Server) onIntention(ctx *dispatch.Context, p *protocol.Intention) error {
	c := ctx.Conn
	switch p.NextState {
	case protocol.IntentStatus:
		return c.SetState(protocol.StateStatus)
	case protocol.IntentLogin, protocol.IntentTransfer:
		if err := c.SetState(protocol.StateLogin); err != nil {
			return err
		}
	default:
		c.Close(fmt.Sprintf("%s%v: %d", reasonProtocol, ErrBadIntent, p.NextState))
		return ErrBadIntent
	}

	if p.ProtocolVersion != protocol.ProtocolVersion {
		msg := "Outdated server! I'm still on " + protocol.VersionName
		if p.ProtocolVersion < protocol.ProtocolVersion {
			msg = "Outdated client! Please use " + protocol.VersionName
		}
		observability.RecordConnectionRejected("version")
		return rejectLogin(c, msg, fmt.Errorf("protocol version %d", p.ProtocolVersion))
	}
	return nil
}

func (s *Server) onHello(ctx *dispatch.Context, p *protocol.Hello) error {
	c := ctx.Conn
	if _, again := s.logins.Load(c.ID()); again {
		c.Close(reasonProtocol + ErrDuplicateHello.Error())
		return ErrDuplicateHello
	}
	if !ValidUsername(p.Username) {
		observability.RecordConnectionRejected("username")
		return rejectLogin(c, "Invalid username", ErrBadUsername)
	}
	if int(s.reserved.Load()) >= s.cfg.Server.MaxPlayers {
		observability.RecordConnectionRejected("full")
		return rejectLogin(c, "The server is full!", errors.New("server full"))
	}
	if _, taken := s.names.LoadOrStore(p.Username, c.ID()); taken {
		observability.RecordConnectionRejected("duplicate")
		return rejectLogin(c, "A player with that name is already online", errors.New("duplicate name"))
	}
	s.reserved.Add(1)

	st := &loginState{name: p.Username, id: OfflineUUID(p.Username)}
	s.logins.Store(c.ID(), st)
	// Identity is set now so release can free the reservation.
	c.SetIdentity(st.name, st.id)

	if s.key == nil {
		return s.finishLogin(c, st)
	}

	st.token = make([]byte, verifyTokenLen)
	if _, err := rand.Read(st.token); err != nil {
		c.Close(reasonProtocol + err.Error())
		return err
	}
	return c.Send(&protocol.EncryptionRequest{
		PublicKey:   s.pubDER,
		VerifyToken: st.token,
	})
}

func (s *Server) onKey(ctx *dispatch.Context, p *protocol.Key) error {
	c := ctx.Conn
	v, ok := s.logins.Load(c.ID())
	st, _ := v.(*loginState)
	if !ok || st.token == nil || st.sent {
		return cryptoFailure(c, ErrNoHello)
	}

	token, err := rsa.DecryptPKCS1v15(nil, s.key, p.VerifyToken)
	if err != nil {
		return cryptoFailure(c, fmt.Errorf("verify token: %w", err))
	}
	if subtle.ConstantTimeCompare(token, st.token) != 1 {
		return cryptoFailure(c, ErrVerifyMismatch)
	}
	secret, err := rsa.DecryptPKCS1v15(nil, s.key, p.SharedSecret)
	if err != nil {
		return cryptoFailure(c, fmt.Errorf("shared secret: %w", err))
	}
	enc, dec, err := wire.NewCipherPair(secret)
	if err != nil {
		return cryptoFailure(c, err)
	}
	if err := c.EnableEncryption(enc, dec); err != nil {
		return err
	}
	return s.finishLogin(c, st)
}

func cryptoFailure(c *conn.Connection, err error) error {
	perr := protocol.NewError(protocol.KindCrypto, err)
	observability.RecordProtocolError(protocol.KindCrypto.String())
	return rejectLogin(c, "Failed to verify encryption", perr)
}

// The server never sends login plugin requests, so answers are ignored.
func (s *Server) onCustomQueryAnswer(*dispatch.Context, *protocol.CustomQueryAnswer) error {
	return nil
}

// finishLogin enables compression and sends game_profile.
func (s *Server) finishLogin(c *conn.Connection, st *loginState) error {
	if t := s.cfg.Network.CompressionThreshold; t >= 0 {
		if err := c.Send(&protocol.LoginCompression{Threshold: int32(t)}); err != nil {
			return err
		}
		if err := c.EnableCompression(t); err != nil {
			return err
		}
	}
	st.sent = true
	return c.Send(&protocol.GameProfile{UUID: st.id, Username: st.name})
}

// onLoginAcknowledged moves the connection to play and hands it to the
// join system.
func (s *Server) onLoginAcknowledged(ctx *dispatch.Context, _ *protocol.LoginAcknowledged) error {
	c := ctx.Conn
	v, _ := s.logins.LoadAndDelete(c.ID())
	st, ok := v.(*loginState)
	if !ok || !st.sent {
		c.Close(reasonProtocol + "login_acknowledged before game_profile")
		return ErrNoProfile
	}
	if err := c.SetState(protocol.StatePlay); err != nil {
		c.Close(reasonProtocol + err.Error())
		return err
	}
	s.joins.Push(c)
	c.Log().Info().Str("player", st.name).Str("uuid", st.id.String()).Msg("login complete")
	return nil
}
