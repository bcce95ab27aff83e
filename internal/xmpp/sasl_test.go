package xmpp

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/suite"
)

type SASLSuite struct {
	suite.Suite
}

func (s *SASLSuite) TestPlainPayload() {
	m := NewPlain("alice", "secret")
	s.Equal(MechanismPlain, m.Name())

	payload, err := m.Start()
	s.NoError(err)

	raw, err := base64.StdEncoding.DecodeString(payload)
	s.NoError(err)
	s.Equal("\x00alice\x00secret", string(raw))

	_, err = m.Step("")
	s.Error(err)
	s.NoError(m.CheckSuccess(""))
}

// 使用 RFC 5802 第 5 节的标准测试向量验证 SCRAM-SHA-1 的完整一轮。
func (s *SASLSuite) TestScramKnownVector() {
	const (
		clientNonce = "fyko+d2lbbFgONRv9qkxdawL"
		serverFirst = "r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096"
		clientFinal = "c=biws,r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,p=v0X8v3Bz2T0CJGbJQyF0X+HI4Ts="
		serverFinal = "v=rmF9pqV8S7suAoZWja4dJRkFsKQ="
	)

	m := &scramMechanism{
		username:    "user",
		password:    "pencil",
		clientNonce: clientNonce,
		clientFirst: "n=user,r=" + clientNonce,
	}

	resp, err := m.Step(base64.StdEncoding.EncodeToString([]byte(serverFirst)))
	s.NoError(err)

	raw, err := base64.StdEncoding.DecodeString(resp)
	s.NoError(err)
	s.Equal(clientFinal, string(raw))

	s.NoError(m.CheckSuccess(base64.StdEncoding.EncodeToString([]byte(serverFinal))))
	s.Error(m.CheckSuccess(base64.StdEncoding.EncodeToString([]byte("v=Zm9yZ2VyeQ=="))))
}

func (s *SASLSuite) TestScramRejectsForeignNonce() {
	m := NewScramSHA1("user", "pencil")
	_, err := m.Start()
	s.NoError(err)

	challenge := base64.StdEncoding.EncodeToString([]byte("r=attacker,s=QSXCR+Q6sek8bf92,i=4096"))
	_, err = m.Step(challenge)
	s.Error(err)
}

func (s *SASLSuite) TestPickMechanism() {
	m, err := PickMechanism(&SASLMechanisms{Mechanism: []string{"PLAIN", "SCRAM-SHA-1"}}, "u", "p")
	s.NoError(err)
	s.Equal(MechanismScram, m.Name())

	m, err = PickMechanism(&SASLMechanisms{Mechanism: []string{"PLAIN"}}, "u", "p")
	s.NoError(err)
	s.Equal(MechanismPlain, m.Name())

	_, err = PickMechanism(&SASLMechanisms{Mechanism: []string{"EXTERNAL"}}, "u", "p")
	s.Error(err)
}

func (s *SASLSuite) TestEscapeScramName() {
	s.Equal("a=2Cb=3Dc", escapeScramName("a,b=c"))
}

func TestSASL(t *testing.T) {
	suite.Run(t, new(SASLSuite))
}
