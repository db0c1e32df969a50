package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const defaultBaseUrl = "https://open.feishu.cn/open-apis"

// tenant_access_token is valid for 2 hours; refresh a bit early.
const tokenSafetyMargin = 5 * time.Minute

const listPageSize = 500

// FeishuConfig carries everything needed to reach one Bitable app.
type FeishuConfig struct {
	AppId      string
	AppSecret  string
	AppToken   string
	BaseUrl    string
	Timeout    time.Duration
	MaxRetries uint64
}

// FeishuStore talks to the Feishu Bitable record API. Tables are addressed
// by table id. All calls retry transient failures with bounded exponential
// backoff; rejections surface immediately.
type FeishuStore struct {
	cfg    FeishuConfig
	client *http.Client
	logger *logrus.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewFeishuStore(cfg FeishuConfig, logger *logrus.Logger) *FeishuStore {
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = defaultBaseUrl
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &FeishuStore{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

func (s *FeishuStore) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	payload := map[string]string{
		"app_id":     s.cfg.AppId,
		"app_secret": s.cfg.AppSecret,
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.BaseUrl+"/auth/v3/tenant_access_token/internal", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build token request: %v", ErrStoreRejected, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch token: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrStoreUnavailable, err)
	}
	if tr.Code != 0 {
		return "", fmt.Errorf("%w: token code=%d msg=%s", ErrStoreRejected, tr.Code, tr.Msg)
	}

	s.token = tr.TenantAccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tr.Expire)*time.Second - tokenSafetyMargin)
	return s.token, nil
}

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// doJson performs one authorized call and classifies the outcome.
// Transient errors come back wrapped in ErrStoreUnavailable so the retry
// loop can pick them up; everything else is permanent.
func (s *FeishuStore) doJson(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal payload: %v", ErrStoreRejected, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.BaseUrl+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrStoreRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s %s: status %d", ErrStoreUnavailable, method, path, resp.StatusCode)
	}

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrStoreUnavailable, err)
	}
	if ar.Code != 0 {
		// Token expired server-side: drop the cache so the retry re-auths.
		if ar.Code == 99991663 || ar.Code == 99991661 {
			s.mu.Lock()
			s.token = ""
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s %s: code=%d msg=%s", ErrStoreUnavailable, method, path, ar.Code, ar.Msg)
		}
		return nil, fmt.Errorf("%w: %s %s: code=%d msg=%s", ErrStoreRejected, method, path, ar.Code, ar.Msg)
	}
	return ar.Data, nil
}

// withRetry wraps op with bounded exponential backoff. Rejections are
// marked permanent so backoff stops immediately.
func (s *FeishuStore) withRetry(ctx context.Context, funcName string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if IsRejected(err) {
			return backoff.Permanent(err)
		}
		s.logger.WithFields(logrus.Fields{
			"module":   "feishu.go",
			"funcName": funcName,
			"attempt":  attempt,
		}).Warn(err.Error())
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.cfg.MaxRetries), ctx)
	return backoff.Retry(wrapped, b)
}

func (s *FeishuStore) tablePath(table string) string {
	return fmt.Sprintf("/bitable/v1/apps/%s/tables/%s/records", s.cfg.AppToken, table)
}

type listData struct {
	Items     []Record `json:"items"`
	HasMore   bool     `json:"has_more"`
	PageToken string   `json:"page_token"`
}

func (s *FeishuStore) List(ctx context.Context, table string) ([]Record, error) {
	var records []Record
	err := s.withRetry(ctx, "List", func() error {
		records = records[:0]
		pageToken := ""
		for {
			path := fmt.Sprintf("%s?page_size=%d", s.tablePath(table), listPageSize)
			if pageToken != "" {
				path += "&page_token=" + url.QueryEscape(pageToken)
			}
			data, err := s.doJson(ctx, http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			var ld listData
			if err := json.Unmarshal(data, &ld); err != nil {
				return fmt.Errorf("%w: decode list data: %v", ErrStoreUnavailable, err)
			}
			records = append(records, ld.Items...)
			if !ld.HasMore || ld.PageToken == "" {
				return nil
			}
			pageToken = ld.PageToken
		}
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

type createData struct {
	Records []Record `json:"records"`
}

func (s *FeishuStore) Create(ctx context.Context, table string, fields []map[string]any) ([]Record, error) {
	type recordFields struct {
		Fields map[string]any `json:"fields"`
	}
	payload := struct {
		Records []recordFields `json:"records"`
	}{}
	for _, f := range fields {
		payload.Records = append(payload.Records, recordFields{Fields: f})
	}

	var created []Record
	err := s.withRetry(ctx, "Create", func() error {
		data, err := s.doJson(ctx, http.MethodPost, s.tablePath(table)+"/batch_create", payload)
		if err != nil {
			return err
		}
		var cd createData
		if err := json.Unmarshal(data, &cd); err != nil {
			return fmt.Errorf("%w: decode create data: %v", ErrStoreUnavailable, err)
		}
		created = cd.Records
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *FeishuStore) Update(ctx context.Context, table string, recordId string, fields map[string]any) error {
	payload := struct {
		Fields map[string]any `json:"fields"`
	}{Fields: fields}
	return s.withRetry(ctx, "Update", func() error {
		_, err := s.doJson(ctx, http.MethodPut, s.tablePath(table)+"/"+url.PathEscape(recordId), payload)
		return err
	})
}

func (s *FeishuStore) Delete(ctx context.Context, table string, recordIds []string) error {
	if len(recordIds) == 0 {
		return nil
	}
	payload := struct {
		Records []string `json:"records"`
	}{Records: recordIds}
	return s.withRetry(ctx, "Delete", func() error {
		_, err := s.doJson(ctx, http.MethodPost, s.tablePath(table)+"/batch_delete", payload)
		return err
	})
}
