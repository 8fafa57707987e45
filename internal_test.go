package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{"csp-report":{"document-uri":"https://example.com/","violated-directive":"script-src"}}`

func TestPing(t *testing.T) {
	deps := newTestDeps(t, testConfig("http://localhost:1"), io.Discard)
	rr := serve(newHandler(deps), httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pong\n", rr.Body.String())
}

func TestCSPReportStored(t *testing.T) {
	deps := newTestDeps(t, testConfig("http://localhost:1"), io.Discard)
	sink := &recordedSink{}
	deps.reportSink = sink

	req := httptest.NewRequest(http.MethodPost, "/internal/cspviolations", strings.NewReader(sampleReport))
	req.Header.Set("Content-Type", "application/csp-report")
	rr := serve(newHandler(deps), req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	require.Len(t, sink.reports, 1)
	for key, report := range sink.reports {
		assert.True(t, strings.HasPrefix(key, "csp-violations/"), key)
		assert.Equal(t, sampleReport, string(report))
	}
}

func TestCSPReportRejectsEmptyAndGet(t *testing.T) {
	deps := newTestDeps(t, testConfig("http://localhost:1"), io.Discard)
	handler := newHandler(deps)

	rr := serve(handler, httptest.NewRequest(http.MethodPost, "/internal/cspviolations", strings.NewReader("  ")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(handler, httptest.NewRequest(http.MethodGet, "/internal/cspviolations", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestReportKeyIsStablePerMonth(t *testing.T) {
	june := time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)
	key := reportKey([]byte(sampleReport), june)

	assert.Equal(t, key, reportKey([]byte(sampleReport), june.Add(24*time.Hour)))
	assert.True(t, strings.HasPrefix(key, "csp-violations/2024-06/"))
	assert.Len(t, strings.TrimPrefix(key, "csp-violations/2024-06/"), 40)
	assert.NotEqual(t, key, reportKey([]byte(`{}`), june))
}

type fakeS3 struct {
	s3iface.S3API
	input *s3.PutObjectInput
	body  string
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	f.input = input
	b, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3ReportSink(t *testing.T) {
	fake := &fakeS3{}
	sink := &s3ReportSink{svc: fake, bucket: "currencyview-reports"}

	err := sink.StoreReport(context.Background(), "csp-violations/2024-06/abc", []byte(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "currencyview-reports", aws.StringValue(fake.input.Bucket))
	assert.Equal(t, "csp-violations/2024-06/abc", aws.StringValue(fake.input.Key))
	assert.Equal(t, "application/csp-report", aws.StringValue(fake.input.ContentType))
	assert.Equal(t, sampleReport, fake.body)
}

func TestLogReportSink(t *testing.T) {
	logs := &syncBuffer{}
	deps := newTestDeps(t, testConfig("http://localhost:1"), logs)
	deps.reportSink = logReportSink{}

	req := httptest.NewRequest(http.MethodPost, "/internal/cspviolations", strings.NewReader(sampleReport))
	rr := serve(newHandler(deps), req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, logs.String(), `"violated-directive":"script-src"`)
}
