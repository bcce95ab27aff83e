package xmpp

import (
	"encoding/xml"
	"strings"
)

// 协议中使用到的 XML 命名空间。
const (
	NSClient  = "jabber:client"
	NSStream  = "http://etherx.jabber.org/streams"
	NSTLS     = "urn:ietf:params:xml:ns:xmpp-tls"
	NSSASL    = "urn:ietf:params:xml:ns:xmpp-sasl"
	NSBind    = "urn:ietf:params:xml:ns:xmpp-bind"
	NSSession = "urn:ietf:params:xml:ns:xmpp-session"
	NSMUC     = "http://jabber.org/protocol/muc"
	NSMUCUser = "http://jabber.org/protocol/muc#user"
)

// StreamFeatures 对应 <stream:features>，服务器在每次流重启后通告。
type StreamFeatures struct {
	XMLName    xml.Name        `xml:"http://etherx.jabber.org/streams features"`
	StartTLS   *FeatureTLS     `xml:"urn:ietf:params:xml:ns:xmpp-tls starttls"`
	Mechanisms *SASLMechanisms `xml:"urn:ietf:params:xml:ns:xmpp-sasl mechanisms"`
	Bind       *struct{}       `xml:"urn:ietf:params:xml:ns:xmpp-bind bind"`
	Session    *struct{}       `xml:"urn:ietf:params:xml:ns:xmpp-session session"`
}

// FeatureTLS 对应 features 中的 <starttls>。
type FeatureTLS struct {
	Required *struct{} `xml:"required"`
}

// SASLMechanisms 对应 features 中的 <mechanisms>。
type SASLMechanisms struct {
	Mechanism []string `xml:"mechanism"`
}

// Offers 判断服务器是否通告了给定 SASL 机制。
func (m *SASLMechanisms) Offers(name string) bool {
	if m == nil {
		return false
	}
	for _, mech := range m.Mechanism {
		if mech == name {
			return true
		}
	}
	return false
}

// TLSProceed 对应 <proceed>，服务器同意进行 TLS 升级。
type TLSProceed struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-tls proceed"`
}

// TLSFailure 对应 TLS 命名空间下的 <failure>。
type TLSFailure struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-tls failure"`
}

// SASLChallenge 对应 <challenge>，内容为 base64 编码的机制数据。
type SASLChallenge struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-sasl challenge"`
	Data    string   `xml:",chardata"`
}

// SASLSuccess 对应 <success>；SCRAM 机制下内容为 base64 编码的服务端校验值。
type SASLSuccess struct {
	XMLName xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-sasl success"`
	Data    string   `xml:",chardata"`
}

// SASLFailure 对应 SASL 命名空间下的 <failure>，InnerXML 保留具体失败条件。
type SASLFailure struct {
	XMLName  xml.Name `xml:"urn:ietf:params:xml:ns:xmpp-sasl failure"`
	InnerXML string   `xml:",innerxml"`
	Text     string   `xml:"text"`
}

// Condition 提取失败条件元素名（如 not-authorized）。
func (f *SASLFailure) Condition() string {
	s := f.InnerXML
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			return "unknown"
		}
		s = s[i+1:]
		if strings.HasPrefix(s, "/") {
			// 结束标签，跳过。
			continue
		}
		j := strings.IndexAny(s, "/> \t\r\n")
		if j <= 0 {
			return "unknown"
		}
		name := s[:j]
		if name != "text" {
			return name
		}
		// 跳过 <text> 的内容，继续找条件元素。
		k := strings.IndexByte(s, '<')
		if k < 0 {
			return "unknown"
		}
		s = s[k:]
	}
}

// StreamError 对应 <stream:error>，收到后连接即不可用。
type StreamError struct {
	XMLName  xml.Name `xml:"http://etherx.jabber.org/streams error"`
	InnerXML string   `xml:",innerxml"`
}

// Message 对应 <message>。
type Message struct {
	XMLName xml.Name `xml:"jabber:client message"`
	From    string   `xml:"from,attr,omitempty"`
	To      string   `xml:"to,attr,omitempty"`
	Type    string   `xml:"type,attr,omitempty"`
	ID      string   `xml:"id,attr,omitempty"`
	Subject string   `xml:"subject,omitempty"`
	Body    string   `xml:"body,omitempty"`
	Thread  string   `xml:"thread,omitempty"`
}

// Presence 对应 <presence>。
//
// 出站时 MUC 字段用于房间加入请求；
// 入站时 MUCUser 字段携带房间成员信息，Error 携带出错原因。
type Presence struct {
	XMLName  xml.Name     `xml:"jabber:client presence"`
	From     string       `xml:"from,attr,omitempty"`
	To       string       `xml:"to,attr,omitempty"`
	Type     string       `xml:"type,attr,omitempty"`
	ID       string       `xml:"id,attr,omitempty"`
	Show     string       `xml:"show,omitempty"`
	Status   string       `xml:"status,omitempty"`
	Priority int          `xml:"priority,omitempty"`
	MUC      *MUCJoin     `xml:"http://jabber.org/protocol/muc x,omitempty"`
	MUCUser  *MUCUser     `xml:"http://jabber.org/protocol/muc#user x,omitempty"`
	Error    *StanzaError `xml:"error,omitempty"`
}

// MUCJoin 为出站房间加入请求中的 <x xmlns="...muc"/> 标记元素。
type MUCJoin struct{}

// MUCUser 对应房间回发 presence 中的 <x xmlns="...muc#user">。
type MUCUser struct {
	Item   *MUCItem    `xml:"item"`
	Status []MUCStatus `xml:"status"`
}

// MUCItem 携带房间成员的从属关系与角色。
type MUCItem struct {
	Affiliation string `xml:"affiliation,attr,omitempty"`
	Role        string `xml:"role,attr,omitempty"`
	JID         string `xml:"jid,attr,omitempty"`
}

// MUCStatus 为房间回发 presence 中的状态码；110 表示该 presence 指向自己。
type MUCStatus struct {
	Code int `xml:"code,attr"`
}

// SelfPresenceCode 为“本条 presence 描述的是请求者自己”的 MUC 状态码。
const SelfPresenceCode = 110

// HasStatus 判断 MUCUser 是否携带给定状态码。
func (u *MUCUser) HasStatus(code int) bool {
	if u == nil {
		return false
	}
	for _, st := range u.Status {
		if st.Code == code {
			return true
		}
	}
	return false
}

// IQ 对应 <iq>。
type IQ struct {
	XMLName xml.Name     `xml:"jabber:client iq"`
	From    string       `xml:"from,attr,omitempty"`
	To      string       `xml:"to,attr,omitempty"`
	Type    string       `xml:"type,attr,omitempty"`
	ID      string       `xml:"id,attr,omitempty"`
	Bind    *Bind        `xml:"urn:ietf:params:xml:ns:xmpp-bind bind,omitempty"`
	Session *struct{}    `xml:"urn:ietf:params:xml:ns:xmpp-session session,omitempty"`
	Error   *StanzaError `xml:"error,omitempty"`
}

// Bind 对应资源绑定请求/结果。
type Bind struct {
	Resource string `xml:"resource,omitempty"`
	JID      string `xml:"jid,omitempty"`
}

// StanzaError 对应 stanza 级 <error>。
type StanzaError struct {
	Code     string `xml:"code,attr,omitempty"`
	Type     string `xml:"type,attr,omitempty"`
	InnerXML string `xml:",innerxml"`
}
