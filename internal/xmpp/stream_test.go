package xmpp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/suite"
)

type StreamSuite struct {
	suite.Suite

	client *Stream
	server net.Conn
}

func (s *StreamSuite) SetupTest() {
	c, srv := net.Pipe()
	s.client = NewStream(c)
	s.server = srv
}

func (s *StreamSuite) TearDownTest() {
	s.client.Close()
	s.server.Close()
}

func (s *StreamSuite) feed(xml string) {
	go func() {
		_, _ = s.server.Write([]byte(xml))
	}()
}

func (s *StreamSuite) TestReadOpen() {
	s.feed(`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="abc123" from="example.com" version="1.0">`)

	id, err := s.client.ReadOpen()
	s.NoError(err)
	s.Equal("abc123", id)
}

func (s *StreamSuite) TestNextFeatures() {
	s.feed(`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="x" version="1.0">` +
		`<stream:features>` +
		`<starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls"><required/></starttls>` +
		`<mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>SCRAM-SHA-1</mechanism><mechanism>PLAIN</mechanism></mechanisms>` +
		`</stream:features>`)

	_, err := s.client.ReadOpen()
	s.NoError(err)

	v, err := s.client.Next()
	s.NoError(err)
	features, ok := v.(*StreamFeatures)
	s.True(ok)
	s.NotNil(features.StartTLS)
	s.NotNil(features.StartTLS.Required)
	s.True(features.Mechanisms.Offers("SCRAM-SHA-1"))
	s.True(features.Mechanisms.Offers("PLAIN"))
	s.False(features.Mechanisms.Offers("EXTERNAL"))
}

func (s *StreamSuite) TestNextMessageAndPresence() {
	s.feed(`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="x" version="1.0">` +
		`<message from="bob@example.com/desk" to="alice@example.com" type="chat" id="m1"><body>hi</body></message>` +
		`<presence from="bob@example.com/desk"><show>away</show><status>brb</status><priority>5</priority></presence>`)

	_, err := s.client.ReadOpen()
	s.NoError(err)

	v, err := s.client.Next()
	s.NoError(err)
	msg, ok := v.(*Message)
	s.True(ok)
	s.Equal("bob@example.com/desk", msg.From)
	s.Equal("chat", msg.Type)
	s.Equal("hi", msg.Body)

	v, err = s.client.Next()
	s.NoError(err)
	pr, ok := v.(*Presence)
	s.True(ok)
	s.Equal("away", pr.Show)
	s.Equal("brb", pr.Status)
	s.Equal(5, pr.Priority)
}

func (s *StreamSuite) TestNextSkipsUnknownElement() {
	s.feed(`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="x" version="1.0">` +
		`<weird xmlns="urn:example:junk"><nested/></weird>` +
		`<message from="bob@example.com"><body>after</body></message>`)

	_, err := s.client.ReadOpen()
	s.NoError(err)

	v, err := s.client.Next()
	s.NoError(err)
	s.Nil(v)

	v, err = s.client.Next()
	s.NoError(err)
	msg, ok := v.(*Message)
	s.True(ok)
	s.Equal("after", msg.Body)
}

func (s *StreamSuite) TestNextMUCSelfPresence() {
	s.feed(`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="x" version="1.0">` +
		`<presence from="room@conference.example.com/alice">` +
		`<x xmlns="http://jabber.org/protocol/muc#user"><item affiliation="member" role="participant"/><status code="110"/></x>` +
		`</presence>`)

	_, err := s.client.ReadOpen()
	s.NoError(err)

	v, err := s.client.Next()
	s.NoError(err)
	pr, ok := v.(*Presence)
	s.True(ok)
	s.True(pr.MUCUser.HasStatus(SelfPresenceCode))
	s.Equal("participant", pr.MUCUser.Item.Role)
}

func (s *StreamSuite) TestWriteOpenEscapesDomain() {
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 512)
		n, _ := s.server.Read(buf)
		done <- buf[:n]
	}()

	s.NoError(s.client.WriteOpen(`ex"ample.com`))
	got := string(<-done)
	s.Contains(got, `to="ex&quot;ample.com"`)
	s.Contains(got, `version="1.0"`)
}

func (s *StreamSuite) TestWriteStanzaRoundTrip() {
	srvStream := NewStream(s.server)

	go func() {
		_ = s.client.WriteStanza(&Message{To: "bob@example.com", Type: "chat", ID: "m9", Body: "<&>"})
	}()

	v, err := srvStream.Next()
	s.NoError(err)
	msg, ok := v.(*Message)
	s.True(ok)
	s.Equal("m9", msg.ID)
	s.Equal("<&>", msg.Body)
}

func TestStream(t *testing.T) {
	suite.Run(t, new(StreamSuite))
}
