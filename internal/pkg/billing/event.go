package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType 计费平台推送的事件类型
type EventType string

const (
	EventCustomerCreated       EventType = "CustomerCreated"
	EventCustomerUpdated       EventType = "CustomerUpdated"
	EventSubscriptionActivated EventType = "SubscriptionActivated"
	EventSubscriptionUpdated   EventType = "SubscriptionUpdated"
	EventSubscriptionCanceled  EventType = "SubscriptionCanceled"
	EventSubscriptionPaused    EventType = "SubscriptionPaused"
	EventSubscriptionResumed   EventType = "SubscriptionResumed"
	EventSubscriptionPastDue   EventType = "SubscriptionPastDue"
)

var ErrMalformedEvent = errors.New("malformed billing event")

// Event webhook 报文
type Event struct {
	EventType EventType `json:"eventType"`
	Data      EventData `json:"data"`
}

// EventData 事件负载，不同事件只使用其中一部分字段
type EventData struct {
	ID                   string         `json:"id"`
	CustomerID           string         `json:"customerId"`
	Email                string         `json:"email"`
	Status               string         `json:"status"`
	CurrentBillingPeriod *BillingPeriod `json:"currentBillingPeriod"`
}

// BillingPeriod 当前计费周期 [StartsAt, EndsAt)
type BillingPeriod struct {
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
}

// ParseEvent 解析 webhook 报文，只校验信封结构
func ParseEvent(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if evt.EventType == "" {
		return nil, fmt.Errorf("%w: missing eventType", ErrMalformedEvent)
	}
	return &evt, nil
}

// CustomerID 订阅的关联键。客户事件里客户 ID 就是 data.id
func (e *Event) CustomerID() string {
	if e.Data.CustomerID != "" {
		return e.Data.CustomerID
	}
	if e.EventType == EventCustomerCreated || e.EventType == EventCustomerUpdated {
		return e.Data.ID
	}
	return ""
}

// Period 返回完整的计费周期，起止任一缺失时返回 false
func (e *Event) Period() (start, end time.Time, ok bool) {
	p := e.Data.CurrentBillingPeriod
	if p == nil || p.StartsAt == nil || p.EndsAt == nil {
		return time.Time{}, time.Time{}, false
	}
	return p.StartsAt.UTC(), p.EndsAt.UTC(), true
}
