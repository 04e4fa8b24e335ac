package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/aliuyar1234/circles/internal/app"
	"github.com/aliuyar1234/circles/internal/auth"
	"github.com/aliuyar1234/circles/internal/config"
	"github.com/aliuyar1234/circles/internal/retention"
	"github.com/aliuyar1234/circles/internal/store/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const e2eSecret = "e2e-secret-e2e-secret-e2e-secret-00"

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// sessionClient is a browser-like client holding a session and CSRF cookie
type sessionClient struct {
	*http.Client
	csrf string
}

func newSessionClient(t *testing.T, serverURL, name string) (*sessionClient, auth.Principal) {
	t.Helper()

	p := auth.Principal{ID: uuid.New(), Name: name, Email: name + "@example.com"}
	token, err := auth.CreateToken(p, e2eSecret, time.Hour)
	require.NoError(t, err)

	csrfToken, err := auth.GenerateCSRFToken()
	require.NoError(t, err)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{
		{Name: auth.SessionCookieName, Value: token, Path: "/"},
		{Name: auth.CSRFCookieName, Value: csrfToken, Path: "/"},
	})

	return &sessionClient{Client: &http.Client{Jar: jar}, csrf: csrfToken}, p
}

func TestE2E_InviteLifecycle(t *testing.T) {
	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	store := postgres.New(pool)
	cfg := &config.Config{
		Env:         "dev",
		HTTPAddr:    ":0",
		BaseURL:     "http://localhost",
		Store:       config.StorePostgres,
		DBDSN:       "unused",
		JWTSecret:   e2eSecret,
		SessionDays: 7,
		LogLevel:    "error",
	}

	srv := httptest.NewServer(app.NewRouter(store, cfg))
	t.Cleanup(srv.Close)

	owner, _ := newSessionClient(t, srv.URL, "olivia")
	requester, requesterP := newSessionClient(t, srv.URL, "ulysses")

	var created struct {
		Circle struct {
			ID         uuid.UUID `json:"id"`
			InviteCode string    `json:"invite_code"`
		} `json:"circle"`
	}
	decodeData(t, doJSONExpectStatus(t, owner, http.MethodPost, srv.URL+"/api/v1/circles", http.StatusCreated, map[string]any{
		"name": "Night owls",
	}), &created)
	circlePath := srv.URL + "/api/v1/circles/" + created.Circle.ID.String()

	doJSONExpectStatus(t, requester, http.MethodPost, srv.URL+"/api/v1/invites/"+created.Circle.InviteCode+"/join", http.StatusCreated, nil)
	doJSONExpectStatus(t, requester, http.MethodPost, srv.URL+"/api/v1/invites/"+created.Circle.InviteCode+"/join", http.StatusOK, nil)
	doJSONExpectStatus(t, owner, http.MethodPost, circlePath+"/members/"+requesterP.ID.String()+"/approve", http.StatusOK, nil)

	var link struct {
		Link struct {
			ID   uuid.UUID `json:"id"`
			Code string    `json:"code"`
		} `json:"link"`
	}
	decodeData(t, doJSONExpectStatus(t, owner, http.MethodPost, circlePath+"/limited-links", http.StatusCreated, map[string]any{
		"max_uses": 2,
	}), &link)

	// Five users race for two seats.
	statuses := make([]int, 5)
	var wg sync.WaitGroup
	for i := range statuses {
		c, _ := newSessionClient(t, srv.URL, "racer")
		wg.Add(1)
		go func(i int, c *sessionClient) {
			defer wg.Done()
			statuses[i] = postStatus(c, srv.URL+"/api/v1/invites/"+link.Link.Code+"/join")
		}(i, c)
	}
	wg.Wait()

	counts := map[int]int{}
	for _, s := range statuses {
		counts[s]++
	}
	require.Equal(t, 2, counts[http.StatusCreated], "statuses: %v", statuses)
	require.Equal(t, 3, counts[http.StatusGone], "statuses: %v", statuses)

	var usedCount int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT used_count FROM limited_invite_links WHERE id = $1`, link.Link.ID).Scan(&usedCount))
	require.Equal(t, 2, usedCount)

	var view struct {
		Circle struct {
			MemberCount int `json:"member_count"`
		} `json:"circle"`
	}
	decodeData(t, doJSONExpectStatus(t, owner, http.MethodGet, circlePath, http.StatusOK, nil), &view)
	require.Equal(t, 4, view.Circle.MemberCount)

	// Revoked links stay around until the retention job purges them.
	doJSONExpectStatus(t, owner, http.MethodDelete, srv.URL+"/api/v1/limited-links/"+link.Link.ID.String(), http.StatusOK, nil)
	require.NoError(t, retention.RunRetentionJob(context.Background(), store,
		retention.Policy{RevokedLinkDays: 30, AuditDays: 180}, time.Now().UTC().Add(31*24*time.Hour)))

	var remaining int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM limited_invite_links WHERE id = $1`, link.Link.ID).Scan(&remaining))
	require.Equal(t, 0, remaining)

	decodeData(t, doJSONExpectStatus(t, owner, http.MethodGet, circlePath, http.StatusOK, nil), &view)
	require.Equal(t, 4, view.Circle.MemberCount, "purging a link keeps its memberships")

	doJSONExpectStatus(t, owner, http.MethodDelete, circlePath, http.StatusOK, nil)
	doJSONExpectStatus(t, requester, http.MethodGet, circlePath, http.StatusNotFound, nil)
}

// postStatus is safe to call off the test goroutine; transport errors yield 0
func postStatus(c *sessionClient, urlStr string) int {
	req, err := http.NewRequest(http.MethodPost, urlStr, nil)
	if err != nil {
		return 0
	}
	req.Header.Set(auth.CSRFHeaderName, c.csrf)

	resp, err := c.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func doJSONExpectStatus(t *testing.T, c *sessionClient, method, urlStr string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	status, body := send(t, c, method, urlStr, payload)
	require.Equal(t, wantStatus, status, "body: %s", string(body))

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func send(t *testing.T, c *sessionClient, method, urlStr string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.CSRFHeaderName, c.csrf)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBody
}

func decodeData(t *testing.T, env envelopeResponse, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}
