package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icsgen/internal/config"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	if mutate != nil {
		mutate(cfg)
	}
	srv := httptest.NewServer(NewServer(cfg, false, prometheus.NewRegistry()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func errorMessage(t *testing.T, body string) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &e))
	return e.Error
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", readBody(t, resp))
}

func TestICS_Get(t *testing.T) {
	srv := newTestServer(t, nil)

	q := url.Values{
		"label":     {"My Meeting"},
		"startDate": {"2030-05-28"},
		"duration":  {"P3D"},
		"fullDays":  {"true"},
	}
	resp, err := http.Get(srv.URL + "/api/ics?" + q.Encode())
	require.NoError(t, err)
	body := readBody(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="My Meeting.ics"`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20300528\r\n")
	assert.Contains(t, body, "DURATION:P3D\r\n")
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR\r\n"))
}

func TestICS_PostForm(t *testing.T) {
	srv := newTestServer(t, nil)

	form := url.Values{
		"label":     {"Sync"},
		"startDate": {"2024-05-23T15:02:47+02:00"},
		"duration":  {"PT1H"},
		"attendees": {"a@b.com, c@d.com"},
		"alarm":     {"PT30M"},
	}
	resp, err := http.PostForm(srv.URL+"/api/ics", form)
	require.NoError(t, err)
	body := readBody(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, "DTSTART:20240523T130247Z\r\n")
	assert.Contains(t, body, "ATTENDEE:mailto:a@b.com\r\n")
	assert.Contains(t, body, "ATTENDEE:mailto:c@d.com\r\n")
	assert.Contains(t, body, "TRIGGER;RELATED=START:-P0DT0H30M\r\n")
}

func TestICS_PostJSON(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) { c.LineEnding = config.LineEndingLF })

	payload := `{"label":"Réunion","startDate":"2024-05-23T09:00:00Z","endDate":"2024-05-23T10:00:00Z"}`
	resp, err := http.Post(srv.URL+"/api/ics", "application/json; charset=utf-8", strings.NewReader(payload))
	require.NoError(t, err)
	body := readBody(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "attachment; filename*=utf-8''R%C3%A9union.ics", resp.Header.Get("Content-Disposition"))
	assert.Contains(t, body, "DTEND:20240523T100000Z\n")
	assert.NotContains(t, body, "\r\n")
}

func TestICS_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name  string
		query url.Values
		want  string
	}{
		{"no end or duration", url.Values{"label": {"x"}, "startDate": {"2024-05-23T09:00:00Z"}}, "both endDate and duration cannot be empty"},
		{"missing label", url.Values{"startDate": {"2024-05-23"}, "fullDays": {"true"}}, "label"},
		{"bad date", url.Values{"label": {"x"}, "startDate": {"tomorrow"}}, "startDate"},
		{"bad duration", url.Values{"label": {"x"}, "startDate": {"2024-05-23T09:00:00Z"}, "duration": {"1h"}}, "duration"},
		{"bad alarm", url.Values{"label": {"x"}, "startDate": {"2024-05-23"}, "fullDays": {"1"}, "alarm": {"soon"}}, "alarm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/api/ics?" + tt.query.Encode())
			require.NoError(t, err)
			body := readBody(t, resp)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			assert.Contains(t, errorMessage(t, body), tt.want)
		})
	}
}

func TestICS_MalformedJSON(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/ics", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, errorMessage(t, body), "body")
}

func TestICS_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/ics", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	readBody(t, resp)

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, POST", resp.Header.Get("Allow"))
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	ok := url.Values{"label": {"x"}, "startDate": {"2024-05-23"}, "fullDays": {"true"}}
	resp, err := http.Get(srv.URL + "/api/ics?" + ok.Encode())
	require.NoError(t, err)
	readBody(t, resp)

	resp, err = http.Get(srv.URL + "/api/ics?label=x")
	require.NoError(t, err)
	readBody(t, resp)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `icsgen_builds_total{mode="all_day_single"} 1`)
	assert.Contains(t, body, `icsgen_build_failures_total{kind="validation"} 1`)
	assert.Contains(t, body, "icsgen_build_bytes_count 1")
}

func TestBasicAuth(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	q := "/api/ics?label=x&startDate=2024-05-23&fullDays=true"
	resp, err = http.Get(srv.URL + q)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+q, nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.SetBasicAuth("admin", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename=plan.ics`, ContentDisposition("plan.ics"))
	assert.Equal(t, `attachment; filename="My Meeting.ics"`, ContentDisposition("My Meeting.ics"))
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}
