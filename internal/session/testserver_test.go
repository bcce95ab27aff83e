package session

import (
	"bufio"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/openfire-session-go/internal/xmpp"
)

// fakeServer 为进程内的最小 XMPP 服务端，只覆盖引擎测试需要的协议面：
// 明文流、SASL PLAIN、资源绑定、MUC 加入回执与消息回收。
type fakeServer struct {
	ln     net.Listener
	domain string

	// silent 为 true 时接受连接后不回任何字节，用于超时测试。
	silent bool
	// password 非空时校验 PLAIN 口令，不匹配回 not-authorized。
	password string
	// rejectRoom 为 true 时对房间加入回错误 presence。
	rejectRoom bool
	// ignoreRoom 为 true 时吞掉房间加入请求，不回任何回执。
	ignoreRoom bool
	// bindDelay 非零时在回资源绑定结果前等待，用于拉长握手窗口。
	bindDelay time.Duration

	mu       sync.Mutex
	conn     net.Conn
	received []*xmpp.Message

	done chan struct{}
}

func newFakeServer(domain string) (*fakeServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	f := &fakeServer{
		ln:     ln,
		domain: domain,
		done:   make(chan struct{}),
	}
	go f.acceptLoop()
	return f, nil
}

func (f *fakeServer) addr() string {
	return f.ln.Addr().String()
}

func (f *fakeServer) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeServer) close() {
	close(f.done)
	f.ln.Close()
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
}

// dropClient 直接关闭当前连接，模拟服务端掉线。
func (f *fakeServer) dropClient() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

// push 以服务端身份向客户端推送一段原始 XML。
func (f *fakeServer) push(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("no client connected")
	}
	_, err := f.conn.Write([]byte(raw))
	return err
}

// messages 返回服务端收到的全部消息快照。
func (f *fakeServer) messages() []*xmpp.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*xmpp.Message, len(f.received))
	copy(out, f.received)
	return out
}

func (f *fakeServer) acceptLoop() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conn = conn
		f.mu.Unlock()
		go f.serve(conn)
	}
}

func (f *fakeServer) serve(conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	dec := xml.NewDecoder(br)
	if _, err := waitStart(dec, "stream"); err != nil {
		return
	}
	if f.silent {
		// 挂住连接直到测试结束。
		<-f.done
		return
	}

	f.writeHeaderAndFeatures(conn, `<mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>PLAIN</mechanism></mechanisms>`)

	// SASL PLAIN。
	authStart, err := waitStart(dec, "auth")
	if err != nil {
		return
	}
	var auth struct {
		Data string `xml:",chardata"`
	}
	if err := dec.DecodeElement(&auth, &authStart); err != nil {
		return
	}
	username, password := decodePlain(auth.Data)
	if f.password != "" && password != f.password {
		fmt.Fprint(conn, `<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><not-authorized/></failure>`)
		return
	}
	fmt.Fprint(conn, `<success xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`)

	// 流重启。
	dec = xml.NewDecoder(br)
	if _, err := waitStart(dec, "stream"); err != nil {
		return
	}
	f.writeHeaderAndFeatures(conn,
		`<bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/><session xmlns="urn:ietf:params:xml:ns:xmpp-session"/>`)

	// 资源绑定。
	bindStart, err := waitStart(dec, "iq")
	if err != nil {
		return
	}
	var bindReq xmpp.IQ
	if err := dec.DecodeElement(&bindReq, &bindStart); err != nil {
		return
	}
	resource := "SparkGo"
	if bindReq.Bind != nil && bindReq.Bind.Resource != "" {
		resource = bindReq.Bind.Resource
	}
	if f.bindDelay > 0 {
		select {
		case <-time.After(f.bindDelay):
		case <-f.done:
			return
		}
	}
	fullJID := fmt.Sprintf("%s@%s/%s", username, f.domain, resource)
	fmt.Fprintf(conn,
		`<iq type="result" id="%s"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>%s</jid></bind></iq>`,
		bindReq.ID, fullJID)

	// session establishment。
	sessStart, err := waitStart(dec, "iq")
	if err != nil {
		return
	}
	var sessReq xmpp.IQ
	if err := dec.DecodeElement(&sessReq, &sessStart); err != nil {
		return
	}
	fmt.Fprintf(conn, `<iq type="result" id="%s"/>`, sessReq.ID)

	// 已认证，进入主循环。
	for {
		tok, err := dec.Token()
		if err != nil {
			return
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "message":
			var msg xmpp.Message
			if err := dec.DecodeElement(&msg, &start); err != nil {
				return
			}
			f.mu.Lock()
			f.received = append(f.received, &msg)
			f.mu.Unlock()
		case "presence":
			var pr xmpp.Presence
			if err := dec.DecodeElement(&pr, &start); err != nil {
				return
			}
			f.handlePresence(conn, &pr)
		default:
			if err := dec.Skip(); err != nil {
				return
			}
		}
	}
}

func (f *fakeServer) handlePresence(conn net.Conn, pr *xmpp.Presence) {
	// 只处理 MUC 加入请求，普通 presence 广播直接吞掉。
	if pr.MUC == nil || !strings.Contains(pr.To, "/") {
		return
	}
	if f.ignoreRoom {
		return
	}
	if f.rejectRoom {
		fmt.Fprintf(conn,
			`<presence from="%s" type="error"><error code="407" type="auth"><registration-required xmlns="urn:ietf:params:xml:ns:xmpp-stanzas"/></error></presence>`,
			pr.To)
		return
	}
	fmt.Fprintf(conn,
		`<presence from="%s"><x xmlns="http://jabber.org/protocol/muc#user"><item affiliation="member" role="participant"/><status code="110"/></x></presence>`,
		pr.To)
}

func (f *fakeServer) writeHeaderAndFeatures(conn net.Conn, featureBody string) {
	fmt.Fprintf(conn,
		`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" from="%s" id="srv1" version="1.0">`,
		f.domain)
	fmt.Fprintf(conn, `<stream:features>%s</stream:features>`, featureBody)
}

// waitStart 跳过 token 流直到遇到给定名字的起始元素。
func waitStart(dec *xml.Decoder, local string) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == local {
			return start, nil
		}
	}
}

func decodePlain(payload string) (username, password string) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", ""
	}
	parts := strings.Split(string(raw), "\x00")
	if len(parts) != 3 {
		return "", ""
	}
	return parts[1], parts[2]
}
