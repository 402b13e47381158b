package e2e

import (
	"chat-relay/domain/event"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseWsSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("E2E_SERVER_URL not set")
	}
}

func (s *BaseWsSuite) header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Participant opens an event channel on the relay.
func (s *BaseWsSuite) Participant(name string) *websocket.Conn {
	s.header(name)
	url := "ws" + strings.TrimPrefix(strings.TrimSuffix(s.Config.ServerURL, "/"), "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+url)
	return conn
}

// Next waits for the next server event on conn.
func (s *BaseWsSuite) Next(conn *websocket.Conn) event.Outbound {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, frame, err := conn.ReadMessage()
	s.Require().NoError(err)
	if s.Config.DebugJSON {
		s.T().Logf("FRAME: %s", frame)
	}
	evt, err := event.DecodeOutbound(frame)
	s.Require().NoError(err)
	return evt
}

func (s *BaseWsSuite) Send(conn *websocket.Conn, in event.Inbound) {
	frame, err := event.EncodeInbound(in)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, frame))
}
