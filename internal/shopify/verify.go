// Package shopify verifies and decodes Shopify webhook deliveries and calls
// back to the Admin API.
package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Webhook headers
const (
	HeaderHMAC   = "X-Shopify-Hmac-Sha256"
	HeaderTopic  = "X-Shopify-Topic"
	HeaderShop   = "X-Shopify-Shop-Domain"
	HeaderWebhID = "X-Shopify-Webhook-Id"
)

// Sign 计算 base64(HMAC-SHA256(body, secret))
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify 常量时间比较签名
func Verify(body []byte, secret, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
