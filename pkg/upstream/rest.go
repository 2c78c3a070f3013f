package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// UsageLimits is an account's credit allowance as reported by the upstream.
type UsageLimits struct {
	UsageLimit       decimal.Decimal `json:"usage_limit"`
	CurrentUsage     decimal.Decimal `json:"current_usage"`
	Available        decimal.Decimal `json:"available"`
	FreeTrialActive  bool            `json:"free_trial_active"`
	FreeTrialLimit   decimal.Decimal `json:"free_trial_limit"`
	FreeTrialUsage   decimal.Decimal `json:"free_trial_usage"`
	DaysUntilReset   int             `json:"days_until_reset"`
	UserEmail        string          `json:"user_email,omitempty"`
	SubscriptionType string          `json:"subscription_type,omitempty"`
}

// GetUsageLimits fetches the credit usage of the account owning token.
func (c *Client) GetUsageLimits(ctx context.Context, token string) (UsageLimits, error) {
	u := c.opts.RESTBaseURL + "/getUsageLimits?isEmailRequired=true&origin=AI_EDITOR&resourceType=AGENTIC_REQUEST"
	body, err := c.rest(ctx, http.MethodGet, u, token, "")
	if err != nil {
		return UsageLimits{}, err
	}
	return ParseUsageLimits(body), nil
}

// ParseUsageLimits reads the CREDIT breakdown of a getUsageLimits response.
// An active free trial adds to both the limit and the usage.
func ParseUsageLimits(body []byte) UsageLimits {
	doc := gjson.ParseBytes(body)
	out := UsageLimits{
		UserEmail:        doc.Get("userInfo.email").String(),
		SubscriptionType: doc.Get("subscriptionInfo.type").String(),
		DaysUntilReset:   int(doc.Get("daysUntilReset").Int()),
	}

	credit := doc.Get(`usageBreakdownList.#(resourceType=="CREDIT")`)
	if credit.Exists() {
		out.UsageLimit = preciseOr(credit, "usageLimitWithPrecision", "usageLimit")
		out.CurrentUsage = preciseOr(credit, "currentUsageWithPrecision", "currentUsage")

		trial := credit.Get("freeTrialInfo")
		if trial.Get("freeTrialStatus").String() == "ACTIVE" {
			out.FreeTrialActive = true
			out.FreeTrialLimit = decimal.NewFromFloat(trial.Get("usageLimitWithPrecision").Float())
			out.FreeTrialUsage = decimal.NewFromFloat(trial.Get("currentUsageWithPrecision").Float())
			out.UsageLimit = out.UsageLimit.Add(out.FreeTrialLimit)
			out.CurrentUsage = out.CurrentUsage.Add(out.FreeTrialUsage)
		}
		if days := credit.Get("daysUntilReset"); days.Exists() {
			out.DaysUntilReset = int(days.Int())
		}
	}

	out.Available = decimal.Max(decimal.Zero, out.UsageLimit.Sub(out.CurrentUsage))
	return out
}

func preciseOr(v gjson.Result, precise, plain string) decimal.Decimal {
	if f := v.Get(precise).Float(); f != 0 {
		return decimal.NewFromFloat(f)
	}
	return decimal.NewFromFloat(v.Get(plain).Float())
}

// ListAvailableModels returns the model ids the account may use.
func (c *Client) ListAvailableModels(ctx context.Context, token, profileARN string) ([]string, error) {
	payload := "{}"
	if profileARN != "" {
		var err error
		if payload, err = sjson.Set(payload, "profileArn", profileARN); err != nil {
			return nil, err
		}
	}
	body, err := c.rest(ctx, http.MethodPost, c.opts.RESTBaseURL+"/ListAvailableModels", token, payload)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range gjson.GetBytes(body, "models").Array() {
		if id := m.Get("modelId").String(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) rest(ctx context.Context, method, url, token, payload string) ([]byte, error) {
	var body io.Reader
	if payload != "" {
		body = strings.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Endpoint: url, Attempts: 1, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Endpoint: url, StatusCode: resp.StatusCode, Body: readErrorBody(resp), Attempts: 1}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
