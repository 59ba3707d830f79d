package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"records-console/internal/common/apperrors"
	"records-console/internal/config"
	"records-console/internal/features/permission"

	"go.uber.org/zap"
)

// RESTGateway talks to the records backend over its JSON REST API.
type RESTGateway struct {
	BaseURL    string
	HttpClient *http.Client
	Timeout    time.Duration
	logger     *zap.Logger
}

func NewRESTGateway(cfg *config.Config, logger *zap.Logger) *RESTGateway {
	return &RESTGateway{
		BaseURL: strings.TrimRight(cfg.GatewayBaseURL, "/"),
		HttpClient: &http.Client{
			Timeout: cfg.GatewayTimeout,
		},
		Timeout: cfg.GatewayTimeout,
		logger:  logger.Named("gateway"),
	}
}

// BasicCredential encodes username and password the way the records backend expects.
func BasicCredential(username, password string) Credential {
	return Credential(base64.StdEncoding.EncodeToString([]byte(username + ":" + password)))
}

func (g *RESTGateway) Authenticate(ctx context.Context, username, password string) (Credential, UserInfo, error) {
	var user UserInfo
	body := map[string]string{"username": username, "password": password}
	if err := g.do(ctx, "authenticate", http.MethodPost, "/api/auth/login", "", body, &user); err != nil {
		return "", UserInfo{}, err
	}
	return BasicCredential(username, password), user, nil
}

func (g *RESTGateway) FetchPermissions(ctx context.Context, cred Credential) ([]permission.Permission, error) {
	var perms []permission.Permission
	if err := g.do(ctx, "fetchPermissions", http.MethodGet, "/api/auth/permissions", cred, nil, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func (g *RESTGateway) FetchLead(ctx context.Context, cred Credential, leadID int64) (Lead, error) {
	var lead Lead
	path := fmt.Sprintf("/api/real-estate/leads/%d", leadID)
	if err := g.do(ctx, "fetchLead", http.MethodGet, path, cred, nil, &lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (g *RESTGateway) WriteLead(ctx context.Context, cred Credential, mutation LeadMutation) (Lead, error) {
	method, path := http.MethodPost, "/api/real-estate/leads"
	if !mutation.IsCreate() {
		method, path = http.MethodPut, fmt.Sprintf("/api/real-estate/leads/%d", mutation.LeadID)
	}

	var lead Lead
	if err := g.do(ctx, "writeLead", method, path, cred, mutation.Body(), &lead); err != nil {
		return Lead{}, err
	}
	if lead.LeadID == 0 {
		lead.LeadID = mutation.LeadID
	}
	return lead, nil
}

// backendTimeLayouts lists the formats the records backend uses for dates. Its
// DateTime columns are naive and serialize without a zone; those are read as UTC.
var backendTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type backendTime struct {
	time.Time
}

func (t *backendTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range backendTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

type callResponse struct {
	CallID     int64       `json:"call_id"`
	CallDate   backendTime `json:"call_date"`
	CallStatus int         `json:"call_status"`
	LeadID     int64       `json:"lead_id"`
}

type meetingResponse struct {
	MeetingID     int64       `json:"meeting_id"`
	MeetingDate   backendTime `json:"meeting_date"`
	MeetingStatus int         `json:"meeting_status"`
	LeadID        int64       `json:"lead_id"`
}

// WriteAction creates a call or meeting. Once the backend accepts the write, fields it
// did not echo back are filled from the request.
func (g *RESTGateway) WriteAction(ctx context.Context, cred Credential, kind ActionKind, leadID int64, payload ActionPayload) (Action, error) {
	path := fmt.Sprintf("/api/real-estate/leads/%d/%ss", leadID, kind)

	var action Action
	switch kind {
	case ActionCall:
		var resp callResponse
		if err := g.do(ctx, "writeAction", http.MethodPost, path, cred, payload.Body(kind), &resp); err != nil {
			return Action{}, err
		}
		action = Action{ID: resp.CallID, Kind: kind, LeadID: resp.LeadID, Date: resp.CallDate.Time, StatusID: resp.CallStatus}
	case ActionMeeting:
		var resp meetingResponse
		if err := g.do(ctx, "writeAction", http.MethodPost, path, cred, payload.Body(kind), &resp); err != nil {
			return Action{}, err
		}
		action = Action{ID: resp.MeetingID, Kind: kind, LeadID: resp.LeadID, Date: resp.MeetingDate.Time, StatusID: resp.MeetingStatus}
	default:
		return Action{}, apperrors.NewValidationError("invalid action", apperrors.FieldError{Field: "action_type", Message: "must be call or meeting"})
	}

	if action.LeadID == 0 {
		action.LeadID = leadID
	}
	if action.Date.IsZero() {
		action.Date = payload.Date
	}
	if action.StatusID == 0 {
		action.StatusID = payload.StatusID
	}
	return action, nil
}

func (g *RESTGateway) FetchLookup(ctx context.Context, cred Credential, vocabulary string) ([]LookupItem, error) {
	var items []LookupItem
	path := "/api/real-estate/lookup/" + vocabulary
	if err := g.do(ctx, "fetchLookup", http.MethodGet, path, cred, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type errorBody struct {
	Detail any    `json:"detail"`
	Error  string `json:"error"`
}

func (g *RESTGateway) do(ctx context.Context, op, method, path string, cred Credential, body any, out any) error {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway %s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, reader)
	if err != nil {
		return &apperrors.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != "" {
		req.Header.Set("Authorization", "Basic "+string(cred))
	}

	start := time.Now()
	resp, err := g.HttpClient.Do(req)
	if err != nil {
		g.logger.Warn("records backend call failed", zap.String("op", op), zap.String("path", path), zap.Error(err))
		return &apperrors.GatewayError{Op: op, Timeout: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	g.logger.Debug("records backend call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Timeout: isTimeout(err), Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			if method == http.MethodGet {
				return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
			}
			// The write already happened; an unreadable body must not turn it into a failure.
			g.logger.Warn("records backend response not decoded",
				zap.String("op", op),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Error(err),
			)
		}
		return nil
	}

	detail := errorDetail(payload)
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", apperrors.ErrUnauthenticated, detail)
	case http.StatusForbidden:
		return apperrors.PermissionDenied("%s: %s", op, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, detail)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return apperrors.NewValidationError(detail)
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Timeout: true, Err: errors.New(detail)}
	default:
		return &apperrors.GatewayError{Op: op, Status: resp.StatusCode, Err: errors.New(detail)}
	}
}

func errorDetail(payload []byte) string {
	var eb errorBody
	if err := json.Unmarshal(payload, &eb); err == nil {
		switch d := eb.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if buf, err := json.Marshal(d); err == nil {
				return string(buf)
			}
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	if s := strings.TrimSpace(string(payload)); s != "" {
		return s
	}
	return "no detail"
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
