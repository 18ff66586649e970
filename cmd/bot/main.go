package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/machine"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		assembly = flag.String("assembly", "buggy", "machine to drive")
		token    = flag.String("token", "", "HELLO token (or set RS_WS_TOKEN)")
		throttle = flag.Float64("throttle", 0.6, "cruise throttle in [0,1]")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.TimeOnly}).
		With().Timestamp().Str("component", "bot").Logger()

	tok := strings.TrimSpace(*token)
	if tok == "" {
		tok = os.Getenv("RS_WS_TOKEN")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	d := newDriver(*assembly)
	d.throttle = *throttle
	if err := run(conn, hello(*name, tok, *assembly), d, logger); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("session ended")
	}
}

func hello(name, token, assembly string) protocol.HelloMsg {
	h := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      name,
		Assemblies:      []string{assembly},
	}
	if token != "" {
		h.Auth = &protocol.HelloAuth{Token: token}
	}
	return h
}

// run sends HELLO and then drives until the connection closes.
func run(conn *websocket.Conn, h protocol.HelloMsg, d *driver, logger zerolog.Logger) error {
	if err := conn.WriteJSON(h); err != nil {
		return err
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Info().Str("world", w.WorldID).Str("session", w.SessionID).Int("tick_rate", w.TickRateHz).Int("assemblies", len(w.Assemblies)).Msg("welcome")

		case protocol.TypeTelemetry:
			var tm protocol.TelemetryMsg
			if err := json.Unmarshal(msg, &tm); err != nil {
				continue
			}
			for _, c := range d.next(tm.Tick, tm.Assemblies) {
				logger.Debug().Str("kind", c.Kind).Uint64("tick", tm.Tick).Msg("command")
				if err := conn.WriteJSON(protocol.CommandMsg{Type: protocol.TypeCommand, ProtocolVersion: protocol.Version, Cmd: c}); err != nil {
					return err
				}
			}

		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			if !ack.Accepted {
				logger.Warn().Str("cmd", ack.AckFor).Str("code", ack.Code).Str("message", ack.Message).Msg("rejected")
			}

		case protocol.TypeEvent:
			var ev protocol.EventMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			logger.Info().Str("type", ev.Event.Type).Str("part", ev.Event.Part).Str("reason", ev.Event.Reason).Uint64("tick", ev.Event.Tick).Msg("event")
			if ev.Event.Type == string(machine.EventAssemblyBroken) {
				logger.Warn().Str("assembly", ev.Event.Assembly).Msg("machine broke; will repair")
			}
		}
	}
}
