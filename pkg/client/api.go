package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"battlemap_server/internal/dto/request"
	"battlemap_server/internal/dto/respond"
	"battlemap_server/pkg/errorx"
)

// API 会话相关的 HTTP 接口
type API struct {
	BaseURL string // 形如 http://127.0.0.1:8000
	HTTP    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WsURL 对应的 websocket 地址
func (a *API) WsURL() string {
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return a.BaseURL + "/wss"
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/wss"
	return u.String()
}

// result 服务端统一响应
type result struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Preview 校验邀请码
func (a *API) Preview(ctx context.Context, code string) (*respond.JoinCodePreviewRespond, error) {
	var out respond.JoinCodePreviewRespond
	if err := a.do(ctx, http.MethodGet, "/session/join?code="+url.QueryEscape(code), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinByCode 用邀请码加入，返回会话和 websocket token
func (a *API) JoinByCode(ctx context.Context, code, userId, displayName string) (*respond.JoinSessionRespond, error) {
	var out respond.JoinSessionRespond
	req := request.JoinSessionRequest{JoinCode: code, UserId: userId, DisplayName: displayName}
	if err := a.do(ctx, http.MethodPost, "/session/join", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) GetSession(ctx context.Context, sessionId string) (*respond.SessionRespond, error) {
	var out respond.SessionRespond
	if err := a.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionId), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do 非成功响应转成 *errorx.CodeError
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var res result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return fmt.Errorf("decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	if res.Code != errorx.CodeSuccess {
		return errorx.New(res.Code, message(res.Msg))
	}
	if out != nil && len(res.Data) > 0 {
		return json.Unmarshal(res.Data, out)
	}
	return nil
}

// message 参数错误时 msg 可能是字段到提示的映射
func message(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
