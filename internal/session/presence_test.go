package session

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/openfire-session-go/internal/xmpp"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

type PresenceSuite struct {
	suite.Suite
}

// 整数编码与字符串编码的对应关系是跨边界契约。
func (s *PresenceSuite) TestStatusCodec() {
	cases := map[PresenceStatus]string{
		StatusAvailable:    "Available",
		StatusAway:         "Away",
		StatusExtendedAway: "ExtendedAway",
		StatusDoNotDisturb: "DoNotDisturb",
		StatusUnavailable:  "Unavailable",
		StatusInvisible:    "Invisible",
	}
	for status, name := range cases {
		s.True(status.Valid())
		s.Equal(name, status.String())
		parsed, err := ParsePresenceStatus(name)
		s.NoError(err)
		s.Equal(status, parsed)
	}

	s.False(PresenceStatus(-1).Valid())
	s.False(PresenceStatus(6).Valid())
	_, err := ParsePresenceStatus("Chilling")
	s.Error(err)
}

func (s *PresenceSuite) TestStanzaMapping() {
	typ, show := StatusAway.stanzaFields()
	s.Equal("", typ)
	s.Equal("away", show)

	typ, show = StatusUnavailable.stanzaFields()
	s.Equal("unavailable", typ)
	s.Equal("", show)

	s.Equal(StatusExtendedAway, statusFromStanza(&xmpp.Presence{Show: "xa"}))
	s.Equal(StatusUnavailable, statusFromStanza(&xmpp.Presence{Type: "unavailable"}))
	s.Equal(StatusAvailable, statusFromStanza(&xmpp.Presence{}))
}

func (s *PresenceSuite) TestCredentialsValidate() {
	s.NoError(Credentials{Username: "alice", Password: "x"}.Validate())

	for _, c := range []Credentials{
		{Username: "", Password: "x"},
		{Username: "al ice", Password: "x"},
		{Username: "alice@example.com", Password: "x"},
		{Username: "alice", Password: ""},
	} {
		err := c.Validate()
		s.ErrorIs(err, merr.ErrCredentialsInvalid, "%+v", c)
	}
}

func (s *PresenceSuite) TestStateStrings() {
	s.Equal("Disconnected", StateDisconnected.String())
	s.Equal("Authenticated", StateAuthenticated.String())
	s.True(StateFailed.canConnect())
	s.True(StateDisconnected.canConnect())
	s.False(StateConnecting.canConnect())
	s.False(StateAuthenticating.canConnect())
	s.False(StateAuthenticated.canConnect())
}

func TestPresence(t *testing.T) {
	suite.Run(t, new(PresenceSuite))
}
