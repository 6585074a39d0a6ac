package transport

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
)

// HTTPProvider talks to the media platform's room service over its REST interface.
// Every request is signed with a short-lived admin token derived from the
// API key/secret pair.
type HTTPProvider struct {
	client    *resty.Client
	apiKey    string
	apiSecret []byte
}

type HTTPProviderConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

func NewHTTPProvider(cfg HTTPProviderConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: base url is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("transport: api key and secret are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPProvider{
		client:    client,
		apiKey:    cfg.APIKey,
		apiSecret: []byte(cfg.APISecret),
	}, nil
}

func (p *HTTPProvider) Name() string { return "room-service" }

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	_, err := p.post(ctx, "/twirp/rtc.RoomService/ListRooms", map[string]any{}, nil)
	return err
}

func (p *HTTPProvider) CreateRoom(ctx context.Context, req CreateRoomRequest) (CreateRoomResult, error) {
	body := map[string]any{
		"name":             req.RoomID,
		"max_participants": req.MaxParticipants,
	}
	if req.EmptyTimeoutSeconds > 0 {
		body["empty_timeout"] = req.EmptyTimeoutSeconds
	}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/CreateRoom", body, nil); err != nil {
		return CreateRoomResult{}, err
	}
	return CreateRoomResult{RoomID: req.RoomID, Created: true}, nil
}

func (p *HTTPProvider) DeleteRoom(ctx context.Context, req DeleteRoomRequest) (DeleteRoomResult, error) {
	body := map[string]any{"room": req.RoomID}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/DeleteRoom", body, nil); err != nil {
		return DeleteRoomResult{}, err
	}
	return DeleteRoomResult{RoomID: req.RoomID, Deleted: true}, nil
}

func (p *HTTPProvider) RemoveParticipant(ctx context.Context, req RemoveParticipantRequest) (RemoveParticipantResult, error) {
	body := map[string]any{"room": req.RoomID, "identity": req.Identity}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/RemoveParticipant", body, nil); err != nil {
		return RemoveParticipantResult{}, err
	}
	return RemoveParticipantResult{Removed: true}, nil
}

func (p *HTTPProvider) MuteParticipant(ctx context.Context, req MuteParticipantRequest) (MuteParticipantResult, error) {
	body := map[string]any{
		"room":     req.RoomID,
		"identity": req.Identity,
		"muted":    req.Muted,
	}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/MutePublishedTrack", body, nil); err != nil {
		return MuteParticipantResult{}, err
	}
	return MuteParticipantResult{Muted: req.Muted}, nil
}

func (p *HTTPProvider) PlayHoldMedia(ctx context.Context, req HoldMediaRequest) (HoldMediaResult, error) {
	body := map[string]any{
		"room":     req.RoomID,
		"identity": req.Identity,
		"url":      req.MediaURL,
		"play":     true,
	}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/UpdateParticipant", body, nil); err != nil {
		return HoldMediaResult{}, err
	}
	return HoldMediaResult{Playing: true}, nil
}

func (p *HTTPProvider) StopHoldMedia(ctx context.Context, req HoldMediaRequest) (HoldMediaResult, error) {
	body := map[string]any{
		"room":     req.RoomID,
		"identity": req.Identity,
		"play":     false,
	}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/UpdateParticipant", body, nil); err != nil {
		return HoldMediaResult{}, err
	}
	return HoldMediaResult{Playing: false}, nil
}

func (p *HTTPProvider) SendData(ctx context.Context, req SendDataRequest) (SendDataResult, error) {
	body := map[string]any{
		"room":  req.RoomID,
		"topic": req.Topic,
		"data":  base64.StdEncoding.EncodeToString(req.Payload),
		"kind":  "RELIABLE",
	}
	if _, err := p.post(ctx, "/twirp/rtc.RoomService/SendData", body, nil); err != nil {
		return SendDataResult{}, err
	}
	return SendDataResult{Delivered: true}, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, body, out any) (*resty.Response, error) {
	auth, err := p.adminToken()
	if err != nil {
		return nil, err
	}

	r := p.client.R().
		SetContext(ctx).
		SetAuthToken(auth).
		SetBody(body)
	if out != nil {
		r = r.SetResult(out)
	}

	resp, err := r.Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &StatusError{Code: resp.StatusCode(), Message: string(resp.Body())}
	}
	return resp, nil
}

// adminToken signs a short-lived service token granting room administration.
func (p *HTTPProvider) adminToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.apiKey,
		"iat": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
		"video": map[string]any{
			"room_create": true,
			"room_admin":  true,
			"room_list":   true,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.apiSecret)
}
