package xmpp

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

type JIDSuite struct {
	suite.Suite
}

func (s *JIDSuite) TestParseFull() {
	j, err := ParseJID("alice@example.com/SparkGo")
	s.NoError(err)
	s.Equal("alice", j.Node)
	s.Equal("example.com", j.Domain)
	s.Equal("SparkGo", j.Resource)
	s.True(j.IsFull())
	s.Equal("alice@example.com", j.Bare())
	s.Equal("alice@example.com/SparkGo", j.String())
}

func (s *JIDSuite) TestParseBare() {
	j, err := ParseJID("alice@example.com")
	s.NoError(err)
	s.False(j.IsFull())
	s.Equal("alice@example.com", j.String())
}

func (s *JIDSuite) TestParseDomainOnly() {
	j, err := ParseJID("conference.example.com")
	s.NoError(err)
	s.Equal("", j.Node)
	s.Equal("conference.example.com", j.Domain)
	s.Equal("conference.example.com", j.String())
}

func (s *JIDSuite) TestParseInvalid() {
	for _, input := range []string{"", "@example.com", "alice@", "alice@example.com/", "a@b@c"} {
		_, err := ParseJID(input)
		s.Error(err, "input %q", input)
		s.ErrorIs(err, merr.ErrProtocol)
	}
}

func TestJID(t *testing.T) {
	suite.Run(t, new(JIDSuite))
}
