package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
)

// UniFi is the HTTP implementation of Controller. Sessions are borrowed
// from the Manager per call; the Manager decides when to re-login.
type UniFi struct {
	sessions *Manager
}

// NewUniFi creates a Controller backed by the given session Manager.
func NewUniFi(sessions *Manager) *UniFi {
	return &UniFi{sessions: sessions}
}

var _ Controller = (*UniFi)(nil)

// sitePrefix maps the detected family to the site API prefix.
func sitePrefix(family Family, site string) string {
	if family == FamilyUDM {
		return "/proxy/network/api/s/" + site
	}
	return "/api/s/" + site
}

// do runs one authenticated call: acquire session, issue, and on a 401
// re-authenticate through the Manager and retry exactly once. A 401 on
// the retried call is terminal.
func (u *UniFi) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	sess, err := u.sessions.Current(ctx)
	if err != nil {
		return err
	}

	resp, err := u.issue(ctx, sess, method, endpoint, payload)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized {
		logger.Debug("Session rejected, re-authenticating",
			zap.String("endpoint", endpoint),
		)
		sess, err = u.sessions.Refresh(ctx, sess)
		if err != nil {
			return err
		}
		resp, err = u.issue(ctx, sess, method, endpoint, payload)
		if err != nil {
			return err
		}
		if resp.status == http.StatusUnauthorized {
			u.sessions.MarkFailed()
			return apperrors.ErrAuthFailedf("controller rejected the session after re-login")
		}
	}

	if err := decodeEnvelope(endpoint, resp, out); err != nil {
		return err
	}
	u.sessions.MarkValidated(sess)
	return nil
}

type response struct {
	status int
	body   []byte
}

func (u *UniFi) issue(ctx context.Context, sess *Session, method, endpoint string, payload interface{}) (*response, error) {
	url := sess.ControllerURL + sitePrefix(sess.Family, u.sessions.Site()) + endpoint

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	attachAuth(req, sess)

	httpResp, err := u.sessions.HTTPClient().Do(req)
	if err != nil {
		return nil, apperrors.ErrControllerUnreachablef(sess.ControllerURL, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return nil, apperrors.ErrControllerUnreachablef(sess.ControllerURL, err)
	}
	return &response{status: httpResp.StatusCode, body: data}, nil
}

// decodeEnvelope checks HTTP status and the meta.rc envelope, then
// unmarshals data into out (a slice or struct pointer) when non-nil.
func decodeEnvelope(endpoint string, resp *response, out interface{}) error {
	var envelope apiResponse
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		if resp.status >= 400 {
			return apperrors.ErrControllerErrorf(endpoint, fmt.Sprintf("HTTP %d", resp.status))
		}
		return apperrors.ErrControllerErrorf(endpoint, "unparseable response")
	}

	if resp.status >= 400 || !envelope.Meta.ok() {
		return mapControllerError(endpoint, envelope.Meta, resp.status)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return apperrors.ErrControllerErrorf(endpoint, fmt.Sprintf("decode data: %v", err))
		}
	}
	return nil
}

// mapControllerError translates the controller's error vocabulary into
// typed errors.
func mapControllerError(endpoint string, meta apiMeta, status int) error {
	switch {
	case strings.Contains(meta.Msg, "api.err.UnknownUser"),
		strings.Contains(meta.Msg, "api.err.InvalidTargetUser"):
		return apperrors.ErrClientNotFoundf(endpoint)
	case strings.Contains(meta.Msg, "api.err.UnknownDevice"):
		return apperrors.NotFound(apperrors.CodeDeviceNotFound, "device not found")
	case strings.Contains(meta.Msg, "api.err.NoPermission"):
		return apperrors.ErrAuthFailedf("account lacks permission for " + endpoint)
	}
	detail := meta.Msg
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", status)
	}
	return apperrors.ErrControllerErrorf(endpoint, detail)
}

// stamgrCommand is the payload for client manager commands.
type stamgrCommand struct {
	Cmd string `json:"cmd"`
	MAC string `json:"mac"`
}

// devmgrCommand is the payload for device manager commands.
type devmgrCommand struct {
	Cmd          string `json:"cmd"`
	MAC          string `json:"mac"`
	LocateEnable *bool  `json:"locate_enable,omitempty"`
}

// eventQuery is the payload for the event listing.
type eventQuery struct {
	Limit int    `json:"_limit"`
	Sort  string `json:"_sort"`
}

func (u *UniFi) ListActiveClients(ctx context.Context) ([]Client, error) {
	var clients []Client
	if err := u.do(ctx, http.MethodGet, "/stat/sta", nil, &clients); err != nil {
		return nil, err
	}
	for i := range clients {
		clients[i].MAC = NormalizeMAC(clients[i].MAC)
		clients[i].Online = true
	}
	return clients, nil
}

func (u *UniFi) ListAllClients(ctx context.Context) ([]Client, error) {
	var clients []Client
	if err := u.do(ctx, http.MethodGet, "/rest/user", nil, &clients); err != nil {
		return nil, err
	}
	for i := range clients {
		clients[i].MAC = NormalizeMAC(clients[i].MAC)
	}
	return clients, nil
}

func (u *UniFi) GetClient(ctx context.Context, mac string) (*Client, error) {
	mac = NormalizeMAC(mac)
	var clients []Client
	if err := u.do(ctx, http.MethodGet, "/stat/user/"+mac, nil, &clients); err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, apperrors.ErrClientNotFoundf(mac)
	}
	client := clients[0]
	client.MAC = NormalizeMAC(client.MAC)
	return &client, nil
}

func (u *UniFi) BlockClient(ctx context.Context, mac string) error {
	return u.stamgr(ctx, "block-sta", mac)
}

func (u *UniFi) UnblockClient(ctx context.Context, mac string) error {
	return u.stamgr(ctx, "unblock-sta", mac)
}

func (u *UniFi) KickClient(ctx context.Context, mac string) error {
	return u.stamgr(ctx, "kick-sta", mac)
}

func (u *UniFi) stamgr(ctx context.Context, cmd, mac string) error {
	return u.do(ctx, http.MethodPost, "/cmd/stamgr", stamgrCommand{
		Cmd: cmd,
		MAC: NormalizeMAC(mac),
	}, nil)
}

func (u *UniFi) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	if err := u.do(ctx, http.MethodGet, "/stat/device", nil, &devices); err != nil {
		return nil, err
	}
	for i := range devices {
		devices[i].MAC = NormalizeMAC(devices[i].MAC)
	}
	return devices, nil
}

func (u *UniFi) RestartDevice(ctx context.Context, mac string) error {
	return u.do(ctx, http.MethodPost, "/cmd/devmgr", devmgrCommand{
		Cmd: "restart",
		MAC: NormalizeMAC(mac),
	}, nil)
}

func (u *UniFi) SetLocate(ctx context.Context, mac string, enabled bool) error {
	return u.do(ctx, http.MethodPost, "/cmd/devmgr", devmgrCommand{
		Cmd:          "set-locate",
		MAC:          NormalizeMAC(mac),
		LocateEnable: &enabled,
	}, nil)
}

func (u *UniFi) ListNetworks(ctx context.Context) ([]NetworkConf, error) {
	var networks []NetworkConf
	if err := u.do(ctx, http.MethodGet, "/rest/networkconf", nil, &networks); err != nil {
		return nil, err
	}
	return networks, nil
}

func (u *UniFi) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []Event
	if err := u.do(ctx, http.MethodPost, "/stat/event", eventQuery{Limit: limit, Sort: "-time"}, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (u *UniFi) Health(ctx context.Context) ([]HealthStatus, error) {
	var health []HealthStatus
	if err := u.do(ctx, http.MethodGet, "/stat/health", nil, &health); err != nil {
		return nil, err
	}
	return health, nil
}
