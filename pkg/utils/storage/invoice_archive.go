package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	appconfig "deluxe_backend/pkg/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// InvoiceArchive stores paid invoice payloads in an S3 compatible bucket.
type InvoiceArchive struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
	logger *zap.Logger
}

// NewS3Client builds a client from the storage settings. Static keys are used
// when present, otherwise the default AWS credential chain applies. A custom
// endpoint (R2, MinIO) switches to path-style addressing.
func NewS3Client(ctx context.Context, cfg appconfig.StorageConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewInvoiceArchive(client putObjectAPI, bucket string, logger *zap.Logger) *InvoiceArchive {
	return &InvoiceArchive{client: client, bucket: bucket, now: time.Now, logger: logger}
}

// InvoiceKey is invoices/<customer>/<yyyy>/<mm>/<invoice>.json. Rewriting
// the same invoice overwrites the same object.
func (a *InvoiceArchive) InvoiceKey(customerID, invoiceID string) string {
	now := a.now().UTC()
	if customerID == "" {
		customerID = "unknown"
	}
	return fmt.Sprintf("invoices/%s/%04d/%02d/%s.json", customerID, now.Year(), int(now.Month()), invoiceID)
}

func (a *InvoiceArchive) ArchiveInvoice(ctx context.Context, customerID, invoiceID string, payload []byte) error {
	key := a.InvoiceKey(customerID, invoiceID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"customer-id": customerID,
			"invoice-id":  invoiceID,
		},
	})
	if err != nil {
		return fmt.Errorf("could not upload invoice %s: %w", invoiceID, err)
	}

	a.logger.Info("invoice archived", zap.String("invoice_id", invoiceID), zap.String("key", key))
	return nil
}
