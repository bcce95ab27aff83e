package xmpp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// SASL 机制名称。
const (
	MechanismPlain = "PLAIN"
	MechanismScram = "SCRAM-SHA-1"
)

// Mechanism 抽象一种 SASL 认证机制。
//
// 交互流程：Start 产生 <auth> 的初始数据；服务器每下发一个
// <challenge>，调用一次 Step 产生 <response>；收到 <success> 后
// 调用 CheckSuccess 校验附带数据。所有数据均为 base64 编码。
type Mechanism interface {
	Name() string
	Start() (string, error)
	Step(challenge string) (string, error)
	CheckSuccess(data string) error
}

// PickMechanism 按服务器通告选择机制，优先 SCRAM-SHA-1。
func PickMechanism(offered *SASLMechanisms, username, password string) (Mechanism, error) {
	switch {
	case offered.Offers(MechanismScram):
		return NewScramSHA1(username, password), nil
	case offered.Offers(MechanismPlain):
		return NewPlain(username, password), nil
	default:
		return nil, merr.WrapErrProtocol("no supported sasl mechanism offered")
	}
}

type plainMechanism struct {
	username string
	password string
}

// NewPlain 创建 PLAIN 机制（RFC 4616）。
func NewPlain(username, password string) Mechanism {
	return &plainMechanism{username: username, password: password}
}

func (m *plainMechanism) Name() string { return MechanismPlain }

func (m *plainMechanism) Start() (string, error) {
	raw := "\x00" + m.username + "\x00" + m.password
	return base64.StdEncoding.EncodeToString([]byte(raw)), nil
}

func (m *plainMechanism) Step(string) (string, error) {
	return "", merr.WrapErrProtocol("unexpected challenge for PLAIN")
}

func (m *plainMechanism) CheckSuccess(string) error { return nil }

type scramMechanism struct {
	username string
	password string

	clientNonce    string
	clientFirst    string
	serverSigB64   string
	expectVerifier bool
}

// NewScramSHA1 创建 SCRAM-SHA-1 机制（RFC 5802）。
func NewScramSHA1(username, password string) Mechanism {
	return &scramMechanism{username: username, password: password}
}

func (m *scramMechanism) Name() string { return MechanismScram }

func (m *scramMechanism) Start() (string, error) {
	nonce := make([]byte, 18)
	if _, err := rand.Read(nonce); err != nil {
		return "", merr.WrapErrProtocol("generate nonce: " + err.Error())
	}
	m.clientNonce = base64.StdEncoding.EncodeToString(nonce)
	m.clientFirst = "n=" + escapeScramName(m.username) + ",r=" + m.clientNonce
	return base64.StdEncoding.EncodeToString([]byte("n,," + m.clientFirst)), nil
}

func (m *scramMechanism) Step(challenge string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(challenge)
	if err != nil {
		return "", merr.WrapErrProtocol("bad challenge encoding: " + err.Error())
	}
	serverFirst := string(raw)

	attrs := parseScramAttrs(serverFirst)
	serverNonce := attrs["r"]
	saltB64 := attrs["s"]
	iterStr := attrs["i"]
	if serverNonce == "" || saltB64 == "" || iterStr == "" {
		return "", merr.WrapErrProtocol("incomplete scram challenge: " + serverFirst)
	}
	if !strings.HasPrefix(serverNonce, m.clientNonce) {
		return "", merr.WrapErrProtocol("scram nonce mismatch")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", merr.WrapErrProtocol("bad scram salt: " + err.Error())
	}
	iterations, err := strconv.Atoi(iterStr)
	if err != nil || iterations <= 0 {
		return "", merr.WrapErrProtocol("bad scram iteration count: " + iterStr)
	}

	saltedPassword := pbkdf2.Key([]byte(m.password), salt, iterations, sha1.Size, sha1.New)
	clientKey := hmacSHA1(saltedPassword, "Client Key")
	storedKey := sha1.Sum(clientKey)
	serverKey := hmacSHA1(saltedPassword, "Server Key")

	clientFinalBare := "c=biws,r=" + serverNonce
	authMessage := m.clientFirst + "," + serverFirst + "," + clientFinalBare

	clientSignature := hmacSHA1(storedKey[:], authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ clientSignature[i]
	}

	m.serverSigB64 = base64.StdEncoding.EncodeToString(hmacSHA1(serverKey, authMessage))
	m.expectVerifier = true

	clientFinal := clientFinalBare + ",p=" + base64.StdEncoding.EncodeToString(proof)
	return base64.StdEncoding.EncodeToString([]byte(clientFinal)), nil
}

func (m *scramMechanism) CheckSuccess(data string) error {
	if !m.expectVerifier {
		return merr.WrapErrProtocol("scram success before challenge round")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return merr.WrapErrProtocol("bad success encoding: " + err.Error())
	}
	attrs := parseScramAttrs(string(raw))
	if attrs["v"] != m.serverSigB64 {
		return merr.WrapErrAuthRejected("server signature mismatch")
	}
	return nil
}

func hmacSHA1(key []byte, msg string) []byte {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}

func parseScramAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		if len(part) >= 2 && part[1] == '=' {
			attrs[part[:1]] = part[2:]
		}
	}
	return attrs
}

// escapeScramName 按 RFC 5802 转义用户名中的 ',' 与 '='。
func escapeScramName(name string) string {
	name = strings.ReplaceAll(name, "=", "=3D")
	return strings.ReplaceAll(name, ",", "=2C")
}
