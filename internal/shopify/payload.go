package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Topic 受支持的 webhook 主题
type Topic string

const (
	TopicOrderCreate       Topic = "orders/create"
	TopicOrderUpdated      Topic = "orders/updated"
	TopicFulfillmentCreate Topic = "fulfillments/create"
)

// Supported 是否在白名单中
func (t Topic) Supported() bool {
	switch t {
	case TopicOrderCreate, TopicOrderUpdated, TopicFulfillmentCreate:
		return true
	}
	return false
}

// Event 已解析的 webhook 载荷，按 topic 区分
type Event interface {
	Topic() Topic
	UpstreamOrderID() string
}

// OrderPayload orders/create 与 orders/updated
type OrderPayload struct {
	ID                json.Number `json:"id" validate:"required"`
	Name              string      `json:"name"`
	FinancialStatus   string      `json:"financial_status"`
	FulfillmentStatus *string     `json:"fulfillment_status"`
	CancelledAt       *string     `json:"cancelled_at"`
	ClosedAt          *string     `json:"closed_at"`
	Phone             string      `json:"phone"`
	ShippingAddress   *Address    `json:"shipping_address"`

	topic Topic
}

// Address 收货地址
type Address struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
	Phone    string `json:"phone"`
}

func (p *OrderPayload) Topic() Topic            { return p.topic }
func (p *OrderPayload) UpstreamOrderID() string { return p.ID.String() }

// Status 由上游字段推导镜像状态
func (p *OrderPayload) Status() string {
	switch {
	case p.CancelledAt != nil && *p.CancelledAt != "":
		return "cancelled"
	case p.FulfillmentStatus != nil && *p.FulfillmentStatus == "fulfilled":
		return "fulfilled"
	case p.ClosedAt != nil && *p.ClosedAt != "":
		return "closed"
	default:
		return "open"
	}
}

// FulfillmentPayload fulfillments/create
type FulfillmentPayload struct {
	ID              json.Number `json:"id" validate:"required"`
	OrderID         json.Number `json:"order_id" validate:"required"`
	Status          string      `json:"status"`
	TrackingCompany string      `json:"tracking_company"`
	TrackingNumber  string      `json:"tracking_number"`
	TrackingNumbers []string    `json:"tracking_numbers"`
}

func (p *FulfillmentPayload) Topic() Topic            { return TopicFulfillmentCreate }
func (p *FulfillmentPayload) UpstreamOrderID() string { return p.OrderID.String() }

// Tracking 首个可用的运单号
func (p *FulfillmentPayload) Tracking() string {
	if p.TrackingNumber != "" {
		return p.TrackingNumber
	}
	for _, n := range p.TrackingNumbers {
		if n != "" {
			return n
		}
	}
	return ""
}

var validate = validator.New()

// Decode 严格解析：未知 topic、非法 JSON、缺少必填字段、非正整数 id 都返回错误
func Decode(topic Topic, body []byte) (Event, error) {
	var ev Event
	switch topic {
	case TopicOrderCreate, TopicOrderUpdated:
		ev = &OrderPayload{topic: topic}
	case TopicFulfillmentCreate:
		ev = &FulfillmentPayload{}
	default:
		return nil, fmt.Errorf("unsupported topic %q", topic)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(ev); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	ids := []json.Number{}
	switch p := ev.(type) {
	case *OrderPayload:
		ids = append(ids, p.ID)
	case *FulfillmentPayload:
		ids = append(ids, p.ID, p.OrderID)
	}
	for _, id := range ids {
		if !validID(id) {
			return nil, fmt.Errorf("invalid payload: id %q is not a positive integer", id)
		}
	}
	return ev, nil
}

func validID(n json.Number) bool {
	s := strings.TrimSpace(n.String())
	v, err := strconv.ParseUint(s, 10, 64)
	return err == nil && v > 0
}
