package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/d60-Lab/shipdesk/config"
)

const trackingURL = "https://www.delhivery.com/track/package/"

// Confirmer 回写履约信息到上游
type Confirmer interface {
	ConfirmFulfillment(ctx context.Context, shopDomain, accessToken, fulfillmentID, waybill string) error
}

// Client Shopify Admin API 客户端
type Client struct {
	apiVersion string
	client     *http.Client
	// baseURL 为空时使用 https://{shop}
	baseURL string
}

func NewClient(cfg config.ShopifyConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{apiVersion: cfg.APIVersion, client: &http.Client{Timeout: timeout}}
}

// WithBaseURL 覆盖店铺地址（测试用）
func (c *Client) WithBaseURL(u string) *Client {
	cp := *c
	cp.baseURL = strings.TrimRight(u, "/")
	return &cp
}

type trackingUpdate struct {
	Fulfillment struct {
		NotifyCustomer bool `json:"notify_customer"`
		TrackingInfo   struct {
			Number  string `json:"number"`
			Company string `json:"company"`
			URL     string `json:"url"`
		} `json:"tracking_info"`
	} `json:"fulfillment"`
}

// ConfirmFulfillment 将快递运单号写回 Shopify 履约记录
func (c *Client) ConfirmFulfillment(ctx context.Context, shopDomain, accessToken, fulfillmentID, waybill string) error {
	var body trackingUpdate
	body.Fulfillment.TrackingInfo.Number = waybill
	body.Fulfillment.TrackingInfo.Company = "Delhivery"
	body.Fulfillment.TrackingInfo.URL = trackingURL + waybill
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	base := c.baseURL
	if base == "" {
		base = "https://" + shopDomain
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/fulfillments/%s/update_tracking.json", base, c.apiVersion, fulfillmentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("shopify returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
