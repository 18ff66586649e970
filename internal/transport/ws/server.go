// Package ws is the operator and observer websocket: HELLO/WELCOME handshake, commands
// acknowledged once applied, and a live stream of events and telemetry.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/catalogs"
	"rigsim.ai/internal/sim/world"
)

// Host is the slice of the world a session talks to.
type Host interface {
	ID() string
	TickRateHz() int
	CurrentTick() uint64
	AssemblyRefs() []protocol.AssemblyRef
	Submit(ctx context.Context, cmd protocol.Command) (world.Result, error)
}

type Options struct {
	Catalogs     *catalogs.Catalogs
	TuningDigest string
	// Token, when set, must match HELLO auth.token.
	Token string
	// QueueSize bounds the per-session outbound queue.
	QueueSize int
}

type Server struct {
	host Host
	hub  *Hub
	opts Options
	log  zerolog.Logger

	upgrader websocket.Upgrader
}

func NewServer(host Host, hub *Hub, opts Options, logger zerolog.Logger) *Server {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Server{
		host: host,
		hub:  hub,
		opts: opts,
		log:  logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

type session struct {
	id     string
	filter map[string]bool
	out    chan []byte
}

func (s *session) wants(assembly string) bool {
	return len(s.filter) == 0 || s.filter[assembly]
}

// send never blocks; it reports false when the queue is full.
func (s *session) send(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case s.out <- b:
		return true
	default:
		return false
	}
}

// sendWait is used for replies, which must not be dropped.
func (s *session) sendWait(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case s.out <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) filterTelemetry(t protocol.TelemetryMsg) protocol.TelemetryMsg {
	if len(s.filter) == 0 {
		return t
	}
	out := t
	out.Assemblies = make([]protocol.AssemblyObs, 0, len(s.filter))
	for _, a := range t.Assemblies {
		if s.filter[a.ID] {
			out.Assemblies = append(out.Assemblies, a)
		}
	}
	return out
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		log := s.log.With().Str("session", sess.id).Logger()
		log.Info().Str("remote", r.RemoteAddr).Msg("session opened")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		s.hub.add(sess)
		defer s.hub.remove(sess)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if err := s.handle(ctx, sess, msg); err != nil {
				break
			}
		}
		log.Info().Msg("session closed")
	}
}

func (s *Server) handle(ctx context.Context, sess *session, msg []byte) error {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return sess.sendWait(ctx, ack("", protocol.ErrProtoBadRequest, "invalid json", 0))
	}
	switch base.Type {
	case protocol.TypeCommand:
		return s.handleCommand(ctx, sess, msg)
	case protocol.TypeEventBatchReq:
		var req protocol.EventBatchReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			return sess.sendWait(ctx, ack(req.ReqID, protocol.ErrProtoBadRequest, "bad EVENT_BATCH_REQ", 0))
		}
		items, next := s.hub.Since(req.SinceCursor, req.Limit, sess.wants)
		return sess.sendWait(ctx, protocol.EventBatchMsg{
			Type:            protocol.TypeEventBatch,
			ProtocolVersion: protocol.Version,
			ReqID:           req.ReqID,
			Events:          items,
			NextCursor:      next,
		})
	default:
		return sess.sendWait(ctx, ack("", protocol.ErrProtoBadRequest, "unsupported message type "+base.Type, 0))
	}
}

func (s *Server) handleCommand(ctx context.Context, sess *session, msg []byte) error {
	var cm protocol.CommandMsg
	_ = json.Unmarshal(msg, &cm)
	if err := protocol.ValidateCommand(msg); err != nil {
		return sess.sendWait(ctx, ack(cm.Cmd.ID, protocol.ErrProtoBadRequest, err.Error(), 0))
	}
	if cm.ProtocolVersion != protocol.Version {
		return sess.sendWait(ctx, ack(cm.Cmd.ID, protocol.ErrProtoBadRequest, "bad protocol_version", 0))
	}
	if !sess.wants(cm.Cmd.Assembly) {
		return sess.sendWait(ctx, ack(cm.Cmd.ID, protocol.ErrUnknownAssembly, "assembly outside this session", 0))
	}
	if cm.Cmd.ID == "" {
		cm.Cmd.ID = uuid.NewString()
	}

	res, err := s.host.Submit(ctx, cm.Cmd)
	if err != nil && res.Code == "" {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res.Code, res.Message = protocol.ErrInternal, err.Error()
	}
	if !res.Accepted() {
		s.log.Debug().Str("session", sess.id).Str("kind", cm.Cmd.Kind).Str("assembly", cm.Cmd.Assembly).Str("code", res.Code).Msg("command rejected")
	}
	return sess.sendWait(ctx, ack(cm.Cmd.ID, res.Code, res.Message, res.Tick))
}

func ack(id, code, message string, tick uint64) protocol.AckMsg {
	return protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          id,
		Accepted:        code == "",
		Code:            code,
		Message:         message,
		ServerTick:      tick,
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return nil
	}
	if err := protocol.ValidateHello(msg); err != nil {
		closeWith(conn, websocket.ClosePolicyViolation, "invalid HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	selected := ""
	if hello.ProtocolVersion != protocol.Version {
		if !slices.Contains(hello.SupportedVersions, protocol.Version) {
			closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
			return nil
		}
		selected = protocol.Version
	}
	if s.opts.Token != "" {
		tok := ""
		if hello.Auth != nil {
			tok = strings.TrimSpace(hello.Auth.Token)
		}
		if tok != s.opts.Token {
			closeWith(conn, websocket.ClosePolicyViolation, "unauthorized")
			return nil
		}
	}

	refs := s.host.AssemblyRefs()
	for _, id := range hello.Assemblies {
		if !slices.ContainsFunc(refs, func(r protocol.AssemblyRef) bool { return r.ID == id }) {
			closeWith(conn, websocket.ClosePolicyViolation, protocol.ErrUnknownAssembly+": "+truncate(id, 64))
			return nil
		}
	}

	sess := &session{
		id:     uuid.NewString(),
		filter: map[string]bool{},
		out:    make(chan []byte, s.opts.QueueSize),
	}
	for _, id := range hello.Assemblies {
		sess.filter[id] = true
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SelectedVersion: selected,
		SessionID:       sess.id,
		WorldID:         s.host.ID(),
		TickRateHz:      s.host.TickRateHz(),
		CurrentTick:     s.host.CurrentTick(),
		Assemblies:      refs,
	}
	if c := s.opts.Catalogs; c != nil {
		welcome.Catalogs = protocol.CatalogDigests{
			PartsDigest:     c.Parts.Digest,
			JointsDigest:    c.Joints.Digest,
			MaterialsDigest: c.Materials.Digest,
			TuningDigest:    s.opts.TuningDigest,
			PartCount:       len(c.Parts.Palette),
		}
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	for _, c := range s.catalogMsgs() {
		if err := writeJSON(conn, c); err != nil {
			return nil
		}
	}
	return sess
}

func (s *Server) catalogMsgs() []protocol.CatalogMsg {
	c := s.opts.Catalogs
	if c == nil {
		return nil
	}
	msg := func(name, digest string, data any) protocol.CatalogMsg {
		return protocol.CatalogMsg{Type: protocol.TypeCatalog, ProtocolVersion: protocol.Version, Name: name, Digest: digest, Data: data}
	}
	parts := make([]catalogs.PartDef, 0, len(c.Parts.Palette))
	for _, id := range c.Parts.Palette {
		parts = append(parts, c.Parts.Defs[id])
	}
	return []protocol.CatalogMsg{
		msg("parts", c.Parts.Digest, parts),
		msg("joints", c.Joints.Digest, c.Joints.Defs),
		msg("materials", c.Materials.Digest, c.Materials.Defs),
	}
}

// truncate keeps close reasons under the 123-byte control frame limit.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
