package server

import (
	"encoding/json"
	"time"

	"ionic/internal/dispatch"
	"ionic/internal/protocol"
	"ionic/internal/text"
)

const statusSampleSize = 12

// StatusDocument is the server list ping response.
type StatusDocument struct {
	Version            StatusVersion  `json:"version"`
	Players            StatusPlayers  `json:"players"`
	Description        text.Component `json:"description"`
	Favicon            string         `json:"favicon,omitempty"`
	EnforcesSecureChat bool           `json:"enforcesSecureChat"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int32  `json:"protocol"`
}

type StatusPlayers struct {
	Max    int            `json:"max"`
	Online int            `json:"online"`
	Sample []StatusSample `json:"sample,omitempty"`
}

type StatusSample struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// PlayerInfo describes one joined player.
type PlayerInfo struct {
	Name     string        `json:"name"`
	UUID     string        `json:"uuid"`
	EntityID int32         `json:"entity_id"`
	X        float64       `json:"x"`
	Y        float64       `json:"y"`
	Z        float64       `json:"z"`
	Latency  time.Duration `json:"latency_ns"`
	Remote   string        `json:"remote"`
	JoinedAt time.Time     `json:"joined_at"`
}

// Info is a snapshot of the running server.
type Info struct {
	Version       string        `json:"version"`
	Protocol      int32         `json:"protocol"`
	MOTD          string        `json:"motd"`
	Online        int           `json:"online"`
	MaxPlayers    int           `json:"max_players"`
	Connections   int           `json:"connections"`
	Entities      int           `json:"entities"`
	Ticks         uint64        `json:"ticks"`
	TimeOfDay     int64         `json:"time_of_day"`
	WorldAge      int64         `json:"world_age"`
	Uptime        time.Duration `json:"uptime_ns"`
	PendingChat   int           `json:"pending_broadcasts"`
	CommandsQueue uint64        `json:"commands_processed"`
}

// Status builds the status document shown in the server list.
func (s *Server) Status() StatusDocument {
	doc := StatusDocument{
		Version:     StatusVersion{Name: protocol.VersionName, Protocol: protocol.ProtocolVersion},
		Description: text.Plain(s.cfg.Server.MOTD),
		Favicon:     s.favicon,
	}
	doc.Players.Max = s.cfg.Server.MaxPlayers
	for _, c := range s.conns.Playing() {
		if _, joined := c.Entity(); !joined {
			continue
		}
		doc.Players.Online++
		if len(doc.Players.Sample) < statusSampleSize {
			doc.Players.Sample = append(doc.Players.Sample, StatusSample{
				Name: c.Username(),
				ID:   c.UUID().String(),
			})
		}
	}
	return doc
}

// Info returns a snapshot for the admin API.
func (s *Server) Info() Info {
	players := s.Players()
	return Info{
		Version:       protocol.VersionName,
		Protocol:      protocol.ProtocolVersion,
		MOTD:          s.cfg.Server.MOTD,
		Online:        len(players),
		MaxPlayers:    s.cfg.Server.MaxPlayers,
		Connections:   s.conns.Len(),
		Entities:      s.world.Len(),
		Ticks:         s.loop.Ticks(),
		TimeOfDay:     s.world.TimeOfDay(),
		WorldAge:      s.world.Age(),
		PendingChat:   s.broadcast.Len(),
		CommandsQueue: s.cmdQueue.Stats().Processed,
		Uptime:        time.Since(s.started),
	}
}

// Players lists joined players ordered by connection id, as of the last
// completed tick.
func (s *Server) Players() []PlayerInfo {
	if snap := s.snapshot.Load(); snap != nil {
		return *snap
	}
	return nil
}

// takeSnapshot runs on the loop goroutine after every tick.
func (s *Server) takeSnapshot(uint64, time.Duration) {
	out := []PlayerInfo{}
	for _, c := range s.conns.Playing() {
		h, joined := c.Entity()
		if !joined {
			continue
		}
		p := PlayerInfo{
			Name:     c.Username(),
			UUID:     c.UUID().String(),
			Latency:  c.Latency(),
			Remote:   c.Remote(),
			JoinedAt: c.JoinedAt(),
		}
		if e, ok := s.world.Get(h); ok {
			p.EntityID = e.NetID
			p.X, p.Y, p.Z = e.Pos.X, e.Pos.Y, e.Pos.Z
		}
		out = append(out, p)
	}
	s.snapshot.Store(&out)
}

func (s *Server) onStatusRequest(ctx *dispatch.Context, _ *protocol.StatusRequest) error {
	raw, err := json.Marshal(s.Status())
	if err != nil {
		return err
	}
	return ctx.Conn.Send(&protocol.StatusResponse{JSON: string(raw)})
}

// onPing answers and closes: the ping ends a status exchange.
func (s *Server) onPing(ctx *dispatch.Context, p *protocol.PingRequest) error {
	return ctx.Conn.Disconnect(&protocol.PongResponse{Payload: p.Payload}, reasonEOF+"status ping complete")
}
