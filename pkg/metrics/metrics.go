// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// namespace 是当前项目所有 Prometheus 指标使用的命名空间。
	namespace = "openfire_session"

	// 以下为当前使用的通用标签名。
	statusLabelName = "status"
	phaseLabelName  = "phase"
)

var (
	// authBuckets 为认证耗时直方图的桶划分，单位为毫秒。
	authBuckets = prometheus.ExponentialBuckets(1, 2, 16)

	// ActiveSessions 为当前注册表中存活的会话数。
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "number of live sessions in the registry",
		})

	// ConnectedSessions 为当前处于 Authenticated 状态的会话数。
	ConnectedSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_sessions",
			Help:      "number of sessions in authenticated state",
		})

	// AuthAttempts 按结果（success/failure）统计认证尝试次数。
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "authentication attempts by outcome",
		}, []string{statusLabelName})

	// AuthDuration 为认证各阶段耗时，单位为毫秒。
	AuthDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_duration_ms",
			Help:      "time spent in each authentication phase in milliseconds",
			Buckets:   authBuckets,
		}, []string{phaseLabelName})

	// MessagesSent 为已发送的消息总数。
	MessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "messages transmitted to the server",
		})

	// EventsDropped 为事件队列溢出时被丢弃的事件总数。
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "events discarded due to a full per-session queue",
		})

	// FramesDropped 为无法解析而被丢弃的入站 stanza 总数。
	FramesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "inbound stanzas discarded as malformed",
		})
)

var registerOnce sync.Once

// Register 将本包全部指标注册到给定 Registerer。
// r 为 nil 时注册到 prometheus.DefaultRegisterer。多次调用只注册一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		r.MustRegister(
			ActiveSessions,
			ConnectedSessions,
			AuthAttempts,
			AuthDuration,
			MessagesSent,
			EventsDropped,
			FramesDropped,
		)
	})
}
