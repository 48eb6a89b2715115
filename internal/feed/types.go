// Package feed tails the traffic log, enriches every record with locations and fans it out to subscribers.
// Package feed 跟踪流量日志，为每条记录补充地理位置并分发给订阅者。
package feed

import (
	"encoding/json"
	"errors"

	"github.com/netxfw/netxmap/internal/geoip"
)

var (
	// ErrMalformedRecord is returned by Decode for lines that are not a JSON object.
	// ErrMalformedRecord 表示该行不是 JSON 对象。
	ErrMalformedRecord = errors.New("malformed record")

	// ErrSourceClosed means the traffic log can no longer be read.
	// ErrSourceClosed 表示流量日志无法继续读取。
	ErrSourceClosed = errors.New("traffic source closed")

	// ErrDuplicateSubscriber is returned when a subscriber ID is registered twice.
	// ErrDuplicateSubscriber 表示订阅者 ID 重复注册。
	ErrDuplicateSubscriber = errors.New("duplicate subscriber")
)

// TrafficEvent is one decoded line of the traffic log. Nil fields were absent or of the wrong type.
// TrafficEvent 是流量日志中解码后的一行，nil 字段表示缺失或类型不符。
type TrafficEvent struct {
	Timestamp     *float64
	AttackType    *string
	Magnitude     *float64
	SourceIP      *string
	DestinationIP *string

	// Extra holds every other key (ports, protocol, packet size...) untouched.
	Extra map[string]json.RawMessage
}

// EnrichedEvent is a TrafficEvent with the location of both endpoints. A nil location is absent.
// EnrichedEvent 是带有两端位置的 TrafficEvent，nil 位置表示缺失。
type EnrichedEvent struct {
	Event *TrafficEvent
	Src   *geoip.Location
	Dst   *geoip.Location
}

// Payload is the message sent to subscribers. Every key is always present; unknown values are null.
// Payload 是发送给订阅者的消息，所有键始终存在，未知值为 null。
type Payload struct {
	Timestamp     *float64 `json:"timestamp"`
	AttackType    *string  `json:"attack_type"`
	Magnitude     *float64 `json:"magnitude"`
	SourceIP      *string  `json:"source_ip"`
	DestinationIP *string  `json:"destination_ip"`
	SrcLat        *float64 `json:"src_lat"`
	SrcLon        *float64 `json:"src_lon"`
	SrcCountry    *string  `json:"src_country"`
	DstLat        *float64 `json:"dst_lat"`
	DstLon        *float64 `json:"dst_lon"`
	DstCountry    *string  `json:"dst_country"`
}

// Payload flattens the event into its broadcast form.
// Payload 将事件展开为广播格式。
func (e *EnrichedEvent) Payload() Payload {
	var p Payload
	if ev := e.Event; ev != nil {
		p.Timestamp = ev.Timestamp
		p.AttackType = ev.AttackType
		p.Magnitude = ev.Magnitude
		p.SourceIP = ev.SourceIP
		p.DestinationIP = ev.DestinationIP
	}
	if e.Src != nil {
		p.SrcLat, p.SrcLon, p.SrcCountry = e.Src.Latitude, e.Src.Longitude, e.Src.Country
	}
	if e.Dst != nil {
		p.DstLat, p.DstLon, p.DstCountry = e.Dst.Latitude, e.Dst.Longitude, e.Dst.Country
	}
	return p
}

// MarshalJSON encodes the broadcast payload.
func (e *EnrichedEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload())
}

// Subscriber is a live consumer of enriched events.
// Send must not block for long: the pipeline calls it for every subscriber in turn.
// Subscriber 是富化事件的实时消费者。Send 不能长时间阻塞，流水线会依次调用每个订阅者。
type Subscriber interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// Filterer is implemented by subscribers that only want part of the stream.
// Filterer 由只需要部分事件流的订阅者实现。
type Filterer interface {
	Accept(e *EnrichedEvent) bool
}
