package xmpp

import (
	"encoding/xml"
	"io"
	"net"
	"time"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// Stream 封装一条 XMPP XML 流的读写。
//
// 读方向由内部 decoder 驱动，写方向不做加锁，
// 上层需要保证同一时刻只有一个 goroutine 在写。
// TLS 升级或 SASL 成功后必须调用 Reset 重启流。
type Stream struct {
	conn net.Conn
	dec  *xml.Decoder
}

// NewStream 在已建立的连接上创建流。
func NewStream(conn net.Conn) *Stream {
	return &Stream{
		conn: conn,
		dec:  xml.NewDecoder(conn),
	}
}

// Conn 返回底层连接。
func (s *Stream) Conn() net.Conn {
	return s.conn
}

// Reset 替换底层连接并重建 decoder，用于 TLS 升级与 SASL 后的流重启。
func (s *Stream) Reset(conn net.Conn) {
	s.conn = conn
	s.dec = xml.NewDecoder(conn)
}

// SetDeadline 设置底层连接的读写截止时间。
func (s *Stream) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}

// SetReadDeadline 设置底层连接的读截止时间。
func (s *Stream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// Close 关闭底层连接。
func (s *Stream) Close() error {
	return s.conn.Close()
}

// WriteOpen 发送流首部 <stream:stream>。
func (s *Stream) WriteOpen(domain string) error {
	var buf []byte
	buf = append(buf, `<?xml version="1.0"?><stream:stream to="`...)
	buf = appendEscaped(buf, domain)
	buf = append(buf, `" xmlns="`+NSClient+`" xmlns:stream="`+NSStream+`" version="1.0">`...)
	return s.writeRaw(buf)
}

// WriteClose 发送流结束标记。对端收到后会关闭自己的方向。
func (s *Stream) WriteClose() error {
	return s.writeRaw([]byte(`</stream:stream>`))
}

// ReadOpen 读取对端的流首部并返回流 ID。
func (s *Stream) ReadOpen() (string, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return "", s.wrapReadErr(err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Space != NSStream || start.Name.Local != "stream" {
			return "", merr.WrapErrProtocol("unexpected stream open element: " + start.Name.Local)
		}
		for _, attr := range start.Attr {
			if attr.Name.Local == "id" {
				return attr.Value, nil
			}
		}
		return "", nil
	}
}

// Next 读取下一个顶层元素并解析为具体 stanza 类型。
//
// 返回值为 *StreamFeatures、*TLSProceed、*TLSFailure、*SASLChallenge、
// *SASLSuccess、*SASLFailure、*Message、*Presence、*IQ 或 *StreamError 之一。
// 无法识别的元素整体跳过并返回 (nil, nil)，由上层决定是否计数丢弃。
func (s *Stream) Next() (any, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return nil, s.wrapReadErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return s.decodeElement(t)
		case xml.EndElement:
			// 对端关闭了流。
			if t.Name.Space == NSStream && t.Name.Local == "stream" {
				return nil, s.wrapReadErr(io.EOF)
			}
		}
	}
}

func (s *Stream) decodeElement(start xml.StartElement) (any, error) {
	var v any
	switch {
	case start.Name.Space == NSStream && start.Name.Local == "features":
		v = &StreamFeatures{}
	case start.Name.Space == NSStream && start.Name.Local == "error":
		v = &StreamError{}
	case start.Name.Space == NSTLS && start.Name.Local == "proceed":
		v = &TLSProceed{}
	case start.Name.Space == NSTLS && start.Name.Local == "failure":
		v = &TLSFailure{}
	case start.Name.Space == NSSASL && start.Name.Local == "challenge":
		v = &SASLChallenge{}
	case start.Name.Space == NSSASL && start.Name.Local == "success":
		v = &SASLSuccess{}
	case start.Name.Space == NSSASL && start.Name.Local == "failure":
		v = &SASLFailure{}
	case start.Name.Space == NSClient && start.Name.Local == "message":
		v = &Message{}
	case start.Name.Space == NSClient && start.Name.Local == "presence":
		v = &Presence{}
	case start.Name.Space == NSClient && start.Name.Local == "iq":
		v = &IQ{}
	default:
		if err := s.dec.Skip(); err != nil {
			return nil, s.wrapReadErr(err)
		}
		return nil, nil
	}
	if err := s.dec.DecodeElement(v, &start); err != nil {
		return nil, merr.WrapErrProtocol("decode " + start.Name.Local + ": " + err.Error())
	}
	return v, nil
}

// WriteStanza 序列化并发送一个 stanza。
func (s *Stream) WriteStanza(v any) error {
	data, err := xml.Marshal(v)
	if err != nil {
		return merr.WrapErrProtocol("marshal stanza: " + err.Error())
	}
	return s.writeRaw(data)
}

// WriteStartTLS 发送 STARTTLS 请求。
func (s *Stream) WriteStartTLS() error {
	return s.writeRaw([]byte(`<starttls xmlns="` + NSTLS + `"/>`))
}

// WriteSASLAuth 发送 SASL 认证起始元素，payload 为已经 base64 编码的数据。
func (s *Stream) WriteSASLAuth(mechanism, payload string) error {
	var buf []byte
	buf = append(buf, `<auth xmlns="`+NSSASL+`" mechanism="`...)
	buf = appendEscaped(buf, mechanism)
	buf = append(buf, `">`...)
	buf = append(buf, payload...)
	buf = append(buf, `</auth>`...)
	return s.writeRaw(buf)
}

// WriteSASLResponse 发送 SASL challenge 的应答，payload 为已经 base64 编码的数据。
func (s *Stream) WriteSASLResponse(payload string) error {
	var buf []byte
	buf = append(buf, `<response xmlns="`+NSSASL+`">`...)
	buf = append(buf, payload...)
	buf = append(buf, `</response>`...)
	return s.writeRaw(buf)
}

func (s *Stream) writeRaw(data []byte) error {
	if _, err := s.conn.Write(data); err != nil {
		return merr.WrapErrTransport(s.conn.RemoteAddr().String(), err, "write stanza")
	}
	return nil
}

func appendEscaped(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			buf = append(buf, "&amp;"...)
		case '<':
			buf = append(buf, "&lt;"...)
		case '>':
			buf = append(buf, "&gt;"...)
		case '"':
			buf = append(buf, "&quot;"...)
		case '\'':
			buf = append(buf, "&apos;"...)
		default:
			buf = append(buf, s[i])
		}
	}
	return buf
}

func (s *Stream) wrapReadErr(err error) error {
	addr := s.conn.RemoteAddr().String()
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return merr.WrapErrTransport(addr, err, "stream closed by peer")
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return merr.WrapErrTimeout("read", 0, err.Error())
	}
	return merr.WrapErrTransport(addr, err)
}
