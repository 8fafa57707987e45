package main

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

const maxReportBytes = 64 << 10

func pingHandler() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("pong\n"))
	})
}

// ReportSink keeps the CSP violation reports browsers post to us.
type ReportSink interface {
	StoreReport(ctx context.Context, key string, report []byte) error
}

type s3ReportSink struct {
	svc    s3iface.S3API
	bucket string
}

func newS3ReportSink(awssess *session.Session, bucket string) *s3ReportSink {
	return &s3ReportSink{svc: s3.New(awssess), bucket: bucket}
}

func (s *s3ReportSink) StoreReport(ctx context.Context, key string, report []byte) error {
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Body:        bytes.NewReader(report),
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String("application/csp-report"),
	})
	return err
}

// logReportSink is used when no bucket is configured
type logReportSink struct{}

func (logReportSink) StoreReport(ctx context.Context, key string, report []byte) error {
	event := zerolog.Ctx(ctx).Warn().Str("key", key)
	if json.Valid(report) {
		event = event.RawJSON("report", report)
	} else {
		event = event.Bytes("report", report)
	}
	event.Msg("csp violation")
	return nil
}

// reportKey files reports by month and content hash, so a browser
// repeating the same report overwrites rather than piles up.
func reportKey(report []byte, now time.Time) string {
	return fmt.Sprintf("csp-violations/%s/%x", now.UTC().Format("2006-01"), sha1.Sum(report))
}

func JSONReportHandler(deps *Dependencies) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := zerolog.Ctx(ctx)

		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReportBytes))
		if err != nil {
			logger.Warn().Err(err).Msg("failed to read csp report")
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		if len(bytes.TrimSpace(b)) == 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		logKey := reportKey(b, time.Now())
		if err := deps.reportSink.StoreReport(ctx, logKey, b); err != nil {
			logger.Warn().Err(err).Str("key", logKey).Msg("failed to store csp report")
		}
		w.WriteHeader(http.StatusNoContent)
	})
}
