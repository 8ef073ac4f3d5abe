package notify

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
	"github.com/d60-Lab/shipdesk/internal/reference"
)

// Sender 消息发送接口
type Sender interface {
	SendTemplate(ctx context.Context, to, template string, params []string) error
}

// WhatsApp Cloud API 模板消息客户端
type WhatsApp struct {
	baseURL       string
	phoneNumberID string
	token         string
	language      string
	countryCode   string
	client        *http.Client
}

func NewWhatsApp(cfg config.WhatsAppConfig) *WhatsApp {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &WhatsApp{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		token:         cfg.Token,
		language:      cfg.Language,
		countryCode:   cfg.CountryCode,
		client:        &http.Client{Timeout: timeout},
	}
}

type templateParam struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string          `json:"type"`
	Parameters []templateParam `json:"parameters"`
}

type templateMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Template         struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []templateComponent `json:"components"`
	} `json:"template"`
}

// SendTemplate 发送模板消息；非 2xx 视为失败
func (w *WhatsApp) SendTemplate(ctx context.Context, to, template string, params []string) error {
	msg := templateMessage{MessagingProduct: "whatsapp", To: w.normalize(to), Type: "template"}
	msg.Template.Name = template
	msg.Template.Language.Code = w.language
	body := templateComponent{Type: "body"}
	for _, p := range params {
		body.Parameters = append(body.Parameters, templateParam{Type: "text", Text: p})
	}
	msg.Template.Components = []templateComponent{body}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (w *WhatsApp) normalize(mobile string) string {
	digits := reference.NormalizeMobile(mobile)
	if len(digits) == 10 && w.countryCode != "" {
		return w.countryCode + digits
	}
	return digits
}
