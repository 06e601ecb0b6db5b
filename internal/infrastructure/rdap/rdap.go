package rdap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/valid-names/internal/domain"
)

// Client looks names up over RDAP. A 404 from the registry means the name is
// not registered.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type domainResponse struct {
	LDHName   string   `json:"ldhName"`
	Status    []string `json:"status"`
	Events    []event  `json:"events"`
	Entities  []entity `json:"entities"`
	SecureDNS *struct {
		DelegationSigned bool `json:"delegationSigned"`
	} `json:"secureDNS"`
}

type event struct {
	Action string `json:"eventAction"`
	Date   string `json:"eventDate"`
}

type entity struct {
	Handle     string            `json:"handle"`
	Roles      []string          `json:"roles"`
	VCardArray []json.RawMessage `json:"vcardArray"`
}

func (c *Client) Lookup(ctx context.Context, fqdn string) (*domain.LookupResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/domain/"+url.PathEscape(fqdn), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/rdap+json, application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rdap %s: %w", fqdn, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &domain.LookupResult{Available: true}, nil
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rdap %s: unexpected status %s: %s", fqdn, resp.Status, body)
	}

	var out domainResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("rdap %s: decode: %w", fqdn, err)
	}

	res := &domain.LookupResult{
		Registrar: registrarName(out.Entities),
		DNSSEC:    out.SecureDNS != nil && out.SecureDNS.DelegationSigned,
	}
	for _, e := range out.Events {
		if e.Action != "registration" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, e.Date); err == nil {
			t = t.UTC()
			res.RegisteredAt = &t
		}
	}
	return res, nil
}

// registrarName prefers the vCard "fn" of the registrar entity and falls
// back to its handle.
func registrarName(entities []entity) string {
	for _, e := range entities {
		if !hasRole(e.Roles, "registrar") {
			continue
		}
		if fn := vcardFN(e.VCardArray); fn != "" {
			return fn
		}
		return e.Handle
	}
	return ""
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}

// vcardFN digs the formatted name out of a jCard: ["vcard", [["fn", {}, "text", "Name"], ...]].
func vcardFN(card []json.RawMessage) string {
	if len(card) < 2 {
		return ""
	}
	var props [][]json.RawMessage
	if err := json.Unmarshal(card[1], &props); err != nil {
		return ""
	}
	for _, p := range props {
		if len(p) < 4 {
			continue
		}
		var name, value string
		if json.Unmarshal(p[0], &name) != nil || name != "fn" {
			continue
		}
		if json.Unmarshal(p[3], &value) == nil {
			return value
		}
	}
	return ""
}
