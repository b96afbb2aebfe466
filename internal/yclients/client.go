package yclients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mkondr/salonbot/internal/model"
	"go.uber.org/zap"
)

// Appointment statuses accepted by UpdateRecordStatus.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const dateLayout = "2006-01-02"

type Config struct {
	BaseURL       string
	CompanyID     int64
	PartnerToken  string
	UserToken     string
	Timeout       time.Duration
	RatePerMinute int
}

// Client is a typed facade over the YClients HTTP API. Construct it
// explicitly and pass it where needed; there is no package-level
// instance.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *windowLimiter
	log     *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 25 * time.Second
	}
	if cfg.RatePerMinute == 0 {
		cfg.RatePerMinute = 60
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: newWindowLimiter(cfg.RatePerMinute, time.Minute, log),
		log:     log,
		sleep:   sleepContext,
	}
}

// Records lists appointments inside [from, to]. clientID narrows the
// listing to one client when non-zero. The returned slice is always
// usable: on any API failure it is empty and the error reports the
// degradation cause, so a bad page never stops a whole poll cycle.
func (c *Client) Records(ctx context.Context, from, to time.Time, clientID int64) ([]model.Appointment, error) {
	query := url.Values{}
	query.Set("start_date", from.UTC().Format(dateLayout))
	query.Set("end_date", to.UTC().Format(dateLayout))
	if clientID != 0 {
		query.Set("client_id", strconv.FormatInt(clientID, 10))
	}

	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("records/%d", c.cfg.CompanyID), query, nil)
	if err != nil {
		c.log.Warn("failed to get records", zap.Error(err))
		return nil, err
	}

	var resp struct {
		Data []apiRecord `json:"data"`
	}
	if err = json.Unmarshal(data, &resp); err != nil {
		err = fmt.Errorf("failed to decode records response: %w", err)
		c.log.Warn("failed to get records", zap.Error(err))
		return nil, err
	}

	records := make([]model.Appointment, 0, len(resp.Data))
	for _, r := range resp.Data {
		records = append(records, r.toModel())
	}
	return records, nil
}

// Record fetches a single appointment. Returns nil on any failure.
func (c *Client) Record(ctx context.Context, recordID int64) (*model.Appointment, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("record/%d/%d", c.cfg.CompanyID, recordID), nil, nil)
	if err != nil {
		c.log.Warn("failed to get record", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, err
	}

	var resp struct {
		Data apiRecord `json:"data"`
	}
	if err = json.Unmarshal(data, &resp); err != nil {
		err = fmt.Errorf("failed to decode record response: %w", err)
		c.log.Warn("failed to get record", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, err
	}

	record := resp.Data.toModel()
	return &record, nil
}

// UpdateRecordStatus mutates the remote attendance: confirmed is 1,
// cancelled is -1. It never fails loudly; callers must branch on the
// returned success flag and must not assume local state changed.
func (c *Client) UpdateRecordStatus(ctx context.Context, recordID int64, status, comment string) bool {
	attendance := 0
	switch status {
	case StatusConfirmed:
		attendance = 1
	case StatusCancelled:
		attendance = -1
	}

	body := map[string]interface{}{"attendance": attendance}
	if comment != "" {
		body["comment"] = comment
	}

	_, err := c.do(ctx, http.MethodPut, fmt.Sprintf("record/%d/%d", c.cfg.CompanyID, recordID), nil, body)
	if err != nil {
		c.log.Error("failed to update record status",
			zap.Int64("record_id", recordID),
			zap.String("status", status),
			zap.Error(err),
		)
		return false
	}

	c.log.Info("record status updated", zap.Int64("record_id", recordID), zap.String("status", status))
	return true
}

// FindClient looks up a client by phone or email; exactly one must be
// supplied. Phone is stripped to digits before querying. Returns the
// first match, or nil when none was found or the lookup failed.
func (c *Client) FindClient(ctx context.Context, phone, email string) (*model.RemoteClient, error) {
	query := url.Values{}
	switch {
	case phone != "":
		query.Set("phone", digitsOnly(phone))
	case email != "":
		query.Set("email", email)
	default:
		return nil, fmt.Errorf("either phone or email is required")
	}

	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("clients/%d", c.cfg.CompanyID), query, nil)
	if err != nil {
		c.log.Warn("failed to find client", zap.Error(err))
		return nil, err
	}

	var resp struct {
		Data []model.RemoteClient `json:"data"`
	}
	if err = json.Unmarshal(data, &resp); err != nil {
		err = fmt.Errorf("failed to decode clients response: %w", err)
		c.log.Warn("failed to find client", zap.Error(err))
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, nil
	}
	return &resp.Data[0], nil
}

// Services lists the company services with the same degrade-to-empty
// policy as Records.
func (c *Client) Services(ctx context.Context) ([]model.Service, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("services/%d", c.cfg.CompanyID), nil, nil)
	if err != nil {
		c.log.Warn("failed to get services", zap.Error(err))
		return nil, err
	}

	var resp struct {
		Data []model.Service `json:"data"`
	}
	if err = json.Unmarshal(data, &resp); err != nil {
		err = fmt.Errorf("failed to decode services response: %w", err)
		c.log.Warn("failed to get services", zap.Error(err))
		return nil, err
	}
	return resp.Data, nil
}

// Staff lists the company staff with the same degrade-to-empty policy
// as Records.
func (c *Client) Staff(ctx context.Context) ([]model.Staff, error) {
	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("staff/%d", c.cfg.CompanyID), nil, nil)
	if err != nil {
		c.log.Warn("failed to get staff", zap.Error(err))
		return nil, err
	}

	var resp struct {
		Data []model.Staff `json:"data"`
	}
	if err = json.Unmarshal(data, &resp); err != nil {
		err = fmt.Errorf("failed to decode staff response: %w", err)
		c.log.Warn("failed to get staff", zap.Error(err))
		return nil, err
	}
	return resp.Data, nil
}

type apiRecord struct {
	ID     int64 `json:"id"`
	Client struct {
		ID int64 `json:"id"`
	} `json:"client"`
	Datetime apiTime `json:"datetime"`
	Services []struct {
		Title string `json:"title"`
	} `json:"services"`
	Staff struct {
		Name string `json:"name"`
	} `json:"staff"`
}

func (r apiRecord) toModel() model.Appointment {
	serviceName := "Услуга"
	if len(r.Services) > 0 && r.Services[0].Title != "" {
		serviceName = r.Services[0].Title
	}
	staffName := "Мастер"
	if r.Staff.Name != "" {
		staffName = r.Staff.Name
	}
	return model.Appointment{
		ID:          r.ID,
		ClientID:    r.Client.ID,
		StartAt:     time.Time(r.Datetime),
		ServiceName: serviceName,
		StaffName:   staffName,
	}
}

// apiTime accepts the datetime variants the API emits. Values without an
// offset are taken as UTC.
type apiTime time.Time

var apiTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *apiTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, layout := range apiTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = apiTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unsupported datetime format %q", s)
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
