package xmpp

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type StanzaSuite struct {
	suite.Suite
}

func (s *StanzaSuite) TestSASLFailureCondition() {
	cases := []struct {
		inner string
		want  string
	}{
		{`<not-authorized xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`, "not-authorized"},
		{`<account-disabled/>`, "account-disabled"},
		{`<text xml:lang="en">call the helpdesk</text><credentials-expired/>`, "credentials-expired"},
		{``, "unknown"},
		{`plain text only`, "unknown"},
	}
	for _, c := range cases {
		f := &SASLFailure{InnerXML: c.inner}
		s.Equal(c.want, f.Condition(), "inner=%q", c.inner)
	}
}

func TestStanza(t *testing.T) {
	suite.Run(t, new(StanzaSuite))
}
