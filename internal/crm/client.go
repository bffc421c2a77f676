// internal/crm/client.go
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dealerdesk/internal/common/config"
	"dealerdesk/internal/models"
)

// Client pushes qualified leads into the dealership's Zoho CRM as
// contacts so the sales pipeline lives in one place.
type Client struct {
	baseURL    string
	oauthToken string
	httpClient *http.Client
}

// Contact mirrors the CRM's contact record shape.
type Contact struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"Email,omitempty"`
	FirstName string `json:"First_Name"`
	LastName  string `json:"Last_Name"`
	Phone     string `json:"Phone,omitempty"`
	Source    string `json:"Lead_Source,omitempty"`
	Notes     string `json:"Description,omitempty"`
}

type createContactResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewClient(cfg config.CRMConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.zohoapis.com/crm/v3"
	}
	return &Client{
		baseURL:    baseURL,
		oauthToken: cfg.OAuthToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// PushLead creates a CRM contact from a qualified chat lead and
// returns the CRM record ID.
func (c *Client) PushLead(ctx context.Context, lead models.Lead) (string, error) {
	contact := contactFromLead(lead)

	payload := map[string]interface{}{
		"data": []Contact{contact},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal contact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Contacts", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+c.oauthToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create contact (status %d): %s", resp.StatusCode, string(body))
	}

	var createResp createContactResponse
	if err := json.Unmarshal(body, &createResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(createResp.Data) == 0 {
		return "", fmt.Errorf("no data in response")
	}
	if createResp.Data[0].Status != "success" {
		return "", fmt.Errorf("contact creation failed: %s", createResp.Data[0].Message)
	}
	return createResp.Data[0].Details.ID, nil
}

// contactFromLead splits the free-text name into the CRM's first/last
// fields and folds budget and interest into the description.
func contactFromLead(lead models.Lead) Contact {
	first, last := splitName(lead.Name)

	var notes []string
	if lead.Budget != nil {
		if lead.Budget.IsRange() {
			notes = append(notes, fmt.Sprintf("Budget: PKR %.0f to %.0f", lead.Budget.Min, lead.Budget.Max))
		} else {
			notes = append(notes, fmt.Sprintf("Budget: PKR %.0f", lead.Budget.Max))
		}
	}
	if len(lead.Interest) > 0 {
		notes = append(notes, "Interested in: "+strings.Join(lead.Interest, ", "))
	}

	return Contact{
		Email:     lead.Email,
		FirstName: first,
		LastName:  last,
		Phone:     lead.Phone,
		Source:    "Website Chat",
		Notes:     strings.Join(notes, "\n"),
	}
}

func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		// The CRM requires a last name.
		return "", "Chat Visitor"
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return "", parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}
