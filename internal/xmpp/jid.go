package xmpp

import (
	"strings"

	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// JID 表示一个 XMPP 地址（node@domain/resource）。
//
// 约定：
//   - node 与 resource 可以为空；domain 不允许为空；
//   - Bare 形式（node@domain）用于路由，Full 形式用于会话定位。
type JID struct {
	Node     string
	Domain   string
	Resource string
}

// NewJID 构造一个 JID。
func NewJID(node, domain, resource string) JID {
	return JID{Node: node, Domain: domain, Resource: resource}
}

// ParseJID 将字符串解析为 JID。
//
// 支持的形式：
//   - domain
//   - node@domain
//   - node@domain/resource
func ParseJID(s string) (JID, error) {
	if s == "" {
		return JID{}, merr.WrapErrProtocol("empty jid")
	}

	var j JID
	rest := s
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		j.Resource = rest[i+1:]
		rest = rest[:i]
		if j.Resource == "" {
			return JID{}, merr.WrapErrProtocol("empty resource in jid: " + s)
		}
	}
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		j.Node = rest[:i]
		rest = rest[i+1:]
		if j.Node == "" {
			return JID{}, merr.WrapErrProtocol("empty node in jid: " + s)
		}
	}
	if rest == "" || strings.ContainsAny(rest, "@/") {
		return JID{}, merr.WrapErrProtocol("invalid domain in jid: " + s)
	}
	j.Domain = rest
	return j, nil
}

// Bare 返回去除 resource 的 node@domain 形式。
func (j JID) Bare() string {
	if j.Node == "" {
		return j.Domain
	}
	return j.Node + "@" + j.Domain
}

// String 返回完整的 JID 字符串。
func (j JID) String() string {
	s := j.Bare()
	if j.Resource != "" {
		s += "/" + j.Resource
	}
	return s
}

// IsFull 判断该 JID 是否携带 resource。
func (j JID) IsFull() bool {
	return j.Resource != ""
}
