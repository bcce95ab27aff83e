package session

import (
	"time"

	"github.com/lk2023060901/openfire-session-go/internal/xmpp"
	"github.com/lk2023060901/openfire-session-go/pkg/util/merr"
)

// PresenceStatus 为可用性枚举。
// 跨边界调用侧用整数编码，返回侧用字符串编码，两种编码都是兼容性契约。
type PresenceStatus int

const (
	StatusAvailable PresenceStatus = iota
	StatusAway
	StatusExtendedAway
	StatusDoNotDisturb
	StatusUnavailable
	StatusInvisible
)

func (p PresenceStatus) String() string {
	switch p {
	case StatusAvailable:
		return "Available"
	case StatusAway:
		return "Away"
	case StatusExtendedAway:
		return "ExtendedAway"
	case StatusDoNotDisturb:
		return "DoNotDisturb"
	case StatusUnavailable:
		return "Unavailable"
	case StatusInvisible:
		return "Invisible"
	default:
		return "Unknown"
	}
}

// Valid 判断整数编码是否落在枚举范围内。
func (p PresenceStatus) Valid() bool {
	return p >= StatusAvailable && p <= StatusInvisible
}

// ParsePresenceStatus 将字符串编码还原为枚举，用于处理服务端回发。
func ParsePresenceStatus(s string) (PresenceStatus, error) {
	switch s {
	case "Available":
		return StatusAvailable, nil
	case "Away":
		return StatusAway, nil
	case "ExtendedAway":
		return StatusExtendedAway, nil
	case "DoNotDisturb":
		return StatusDoNotDisturb, nil
	case "Unavailable":
		return StatusUnavailable, nil
	case "Invisible":
		return StatusInvisible, nil
	default:
		return 0, merr.WrapErrProtocol("unknown presence status: " + s)
	}
}

// stanzaFields 返回该可用性对应的 presence stanza 的 type 与 show 取值。
func (p PresenceStatus) stanzaFields() (typ, show string) {
	switch p {
	case StatusAway:
		return "", "away"
	case StatusExtendedAway:
		return "", "xa"
	case StatusDoNotDisturb:
		return "", "dnd"
	case StatusUnavailable:
		return "unavailable", ""
	case StatusInvisible:
		return "invisible", ""
	default:
		return "", ""
	}
}

// statusFromStanza 从入站 presence stanza 还原可用性枚举。
func statusFromStanza(p *xmpp.Presence) PresenceStatus {
	switch p.Type {
	case "unavailable":
		return StatusUnavailable
	case "invisible":
		return StatusInvisible
	}
	switch p.Show {
	case "away":
		return StatusAway
	case "xa":
		return StatusExtendedAway
	case "dnd":
		return StatusDoNotDisturb
	default:
		return StatusAvailable
	}
}

// PresenceState 为会话缓存的最近一次 presence，按边界 JSON 契约命名字段。
// Timestamp 为最近一次变更时间的 RFC 3339 编码。
type PresenceState struct {
	JID           string `json:"jid"`
	Status        string `json:"status"`
	StatusMessage string `json:"status_message"`
	Priority      int    `json:"priority"`
	Timestamp     string `json:"timestamp"`
}

// presenceCache 为引擎内部持有的 presence 状态，导出时再转成字符串编码。
type presenceCache struct {
	status    PresenceStatus
	text      string
	priority  int
	updatedAt time.Time
}

func (c *presenceCache) snapshot(jid string) PresenceState {
	return PresenceState{
		JID:           jid,
		Status:        c.status.String(),
		StatusMessage: c.text,
		Priority:      c.priority,
		Timestamp:     c.updatedAt.Format(time.RFC3339),
	}
}
