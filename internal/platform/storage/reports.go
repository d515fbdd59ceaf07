package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/swiftcart/api/internal/services"
)

const latestReportName = "latest.csv"

// ReportExporter stores rendered analytics reports in Cloud Storage and
// hands out signed download URLs for them.
type ReportExporter struct {
	client *gcs.Client
	urls   *Client
	copier *Copier
	bucket string
	expiry time.Duration
}

var _ services.ReportStore = (*ReportExporter)(nil)

// ReportExporterConfig configures the report exporter.
type ReportExporterConfig struct {
	Client *gcs.Client
	URLs   *Client
	Bucket string
	// Expiry bounds the signed download URL lifetime; zero uses the client default.
	Expiry time.Duration
}

// NewReportExporter constructs a Cloud Storage backed report exporter.
func NewReportExporter(cfg ReportExporterConfig) (*ReportExporter, error) {
	if cfg.Client == nil {
		return nil, errors.New("report exporter: storage client is required")
	}
	if cfg.URLs == nil {
		return nil, errors.New("report exporter: signed url client is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("report exporter: bucket is required")
	}
	copier, err := NewCopier(cfg.Client)
	if err != nil {
		return nil, err
	}
	return &ReportExporter{
		client: cfg.Client,
		urls:   cfg.URLs,
		copier: copier,
		bucket: bucket,
		expiry: cfg.Expiry,
	}, nil
}

// SaveReport uploads the rendered report, refreshes the stable latest copy,
// and signs a download URL for the caller. Download access requires a staff
// or admin identity on the context.
func (e *ReportExporter) SaveReport(ctx context.Context, fileName string, contentType string, data []byte) (services.SavedReport, error) {
	if e == nil || e.client == nil {
		return services.SavedReport{}, errors.New("report exporter: not initialised")
	}
	if len(data) == 0 {
		return services.SavedReport{}, errors.New("report exporter: report is empty")
	}

	objectPath, err := BuildObjectPath(PurposeOrderReport, PathParams{FileName: fileName})
	if err != nil {
		return services.SavedReport{}, err
	}

	writer := e.client.Bucket(e.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return services.SavedReport{}, fmt.Errorf("report exporter: write %s: %w", objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return services.SavedReport{}, fmt.Errorf("report exporter: write %s: %w", objectPath, err)
	}

	latestPath, err := BuildObjectPath(PurposeOrderReport, PathParams{FileName: latestReportName})
	if err != nil {
		return services.SavedReport{}, err
	}
	if err := e.copier.CopyObject(ctx, e.bucket, objectPath, e.bucket, latestPath); err != nil {
		return services.SavedReport{}, fmt.Errorf("report exporter: refresh latest copy: %w", err)
	}

	identity, err := AuthorizeDownloadFromContext(ctx, "", false)
	if err != nil {
		return services.SavedReport{}, err
	}

	signed, err := e.urls.SignedDownloadURL(ctx, e.bucket, objectPath, DownloadOptions{
		ExpiresIn:    e.expiry,
		Disposition:  fmt.Sprintf("attachment; filename=%q", fileName),
		ResponseType: contentType,
		Identity:     identity,
	})
	if err != nil {
		return services.SavedReport{}, err
	}

	return services.SavedReport{
		ObjectPath:  objectPath,
		DownloadURL: signed.URL,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}
