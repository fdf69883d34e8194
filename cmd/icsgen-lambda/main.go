package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"icsgen/internal/config"
	"icsgen/internal/ics"
	appLog "icsgen/internal/log"
	"icsgen/internal/model"
	"icsgen/internal/request"
	"icsgen/internal/web"
)

// handler serves Lambda function URL invocations.
type handler struct {
	builder *ics.Builder
	loc     *time.Location
}

func newHandler(cfg *config.Config) (*handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &handler{
		builder: ics.NewBuilder(cfg.BuilderOptions()...),
		loc:     loc,
	}, nil
}

func (h *handler) handle(ctx context.Context, ev events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	req, err := h.decode(ev)
	if err != nil {
		return h.fail(err), nil
	}

	out, err := h.builder.Build(req)
	if err != nil {
		return h.fail(err), nil
	}

	appLog.Info("calendar built",
		"request_id", ev.RequestContext.RequestID,
		"uid", out.UID,
		"bytes", len(out.Data),
	)
	return events.LambdaFunctionURLResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":        out.MediaType + "; charset=utf-8",
			"Content-Disposition": web.ContentDisposition(out.Filename),
		},
		Body:            base64.StdEncoding.EncodeToString(out.Data),
		IsBase64Encoded: true,
	}, nil
}

func (h *handler) decode(ev events.LambdaFunctionURLRequest) (model.EventRequest, error) {
	body := ev.Body
	if ev.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return model.EventRequest{}, &ics.ParseError{Field: "body", Err: err}
		}
		body = string(raw)
	}

	mediaType, _, _ := mime.ParseMediaType(header(ev.Headers, "Content-Type"))
	switch {
	case strings.TrimSpace(body) == "":
		values := url.Values{}
		for k, v := range ev.QueryStringParameters {
			values.Set(k, v)
		}
		return request.FromValues(values, h.loc)
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(body)
		if err != nil {
			return model.EventRequest{}, &ics.ParseError{Field: "body", Err: err}
		}
		return request.FromValues(values, h.loc)
	default:
		return request.FromJSON(strings.NewReader(body), h.loc)
	}
}

func (h *handler) fail(err error) events.LambdaFunctionURLResponse {
	status := http.StatusBadRequest
	msg := err.Error()
	if !ics.IsClientError(err) {
		appLog.Error("build failed", err)
		status = http.StatusInternalServerError
		msg = "failed to build calendar"
	}
	b, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
		Body:       string(b),
	}
}

// header looks up a header case-insensitively; function URLs deliver them
// lowercased.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		appLog.Error("failed to load .env", err)
	}
	cfg := config.FromEnv()
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	h, err := newHandler(cfg)
	if err != nil {
		appLog.Error("invalid configuration", err, "timezone", cfg.Timezone)
		panic(err)
	}
	lambda.Start(h.handle)
}
