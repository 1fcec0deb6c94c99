// Package audit persists one JSON record per executed trade to S3. Records
// are an append-only trail for post-hoc reconciliation; the writer never
// blocks or fails an order.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "cryptotrader/config"
	"cryptotrader/internal/exchange"
	"cryptotrader/internal/trade"
	"cryptotrader/logger"
)

// Record is the persisted shape of one executed trade.
type Record struct {
	ID                  string                 `json:"id"`
	RecordedAt          time.Time              `json:"recordedAt"`
	Symbol              string                 `json:"symbol"`
	Side                exchange.Side          `json:"side"`
	OrderID             int64                  `json:"orderId"`
	ClientOrderID       string                 `json:"clientOrderId"`
	Status              exchange.OrderStatus   `json:"status"`
	Quantity            string                 `json:"quantity"`
	Price               string                 `json:"price"`
	ExecutedQty         string                 `json:"executedQty"`
	CumulativeQuoteQty  string                 `json:"cumulativeQuoteQty"`
	CommissionTotal     string                 `json:"commissionTotal"`
	CommissionAsset     string                 `json:"commissionAsset"`
	Expected            trade.ExpectedBalances `json:"expected"`
	SettlementConfirmed bool                   `json:"settlementConfirmed"`
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Writer uploads trade records to S3 from a buffered queue. A full queue
// drops the record with a warning rather than stalling order execution.
type Writer struct {
	client  objectPutter
	bucket  string
	prefix  string
	records chan Record
	wg      sync.WaitGroup
	log     *logger.Log

	written int64
	dropped int64
	failed  int64
}

// NewWriter configures the AWS SDK the same way the metrics publisher does:
// region from config, static credentials when provided, default provider
// chain otherwise.
func NewWriter(cfg appconfig.S3Config) (*Writer, error) {
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &Writer{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		records: make(chan Record, 64),
		log:     logger.GetLogger(),
	}, nil
}

// Start launches the upload worker. It drains the queue until ctx is
// cancelled and the channel is empty.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.worker(ctx)
}

// Stop closes the queue and waits for in-flight uploads.
func (w *Writer) Stop() {
	close(w.records)
	w.wg.Wait()
}

// RecordTrade builds a record from an execution result and enqueues it.
func (w *Writer) RecordTrade(res *trade.Result) {
	rec := Record{
		ID:                  uuid.NewString(),
		RecordedAt:          time.Now().UTC(),
		Symbol:              res.Report.Symbol,
		Side:                res.Report.Side,
		OrderID:             res.Report.OrderID,
		ClientOrderID:       res.Report.ClientOrderID,
		Status:              res.Report.Status,
		Quantity:            res.Quantity.String(),
		Price:               res.Price.String(),
		ExecutedQty:         res.Report.ExecutedQty.String(),
		CumulativeQuoteQty:  res.Report.CumulativeQuoteQty.String(),
		CommissionTotal:     res.Report.CommissionTotal.String(),
		CommissionAsset:     res.Report.CommissionAsset,
		Expected:            res.Expected,
		SettlementConfirmed: res.SettlementConfirmed,
	}

	select {
	case w.records <- rec:
	default:
		atomic.AddInt64(&w.dropped, 1)
		w.log.WithComponent("audit").WithFields(logger.Fields{
			"symbol":   rec.Symbol,
			"order_id": rec.OrderID,
		}).Warn("audit queue full, record dropped")
	}
}

func (w *Writer) worker(ctx context.Context) {
	defer w.wg.Done()

	log := w.log.WithComponent("audit")
	for rec := range w.records {
		if err := w.upload(ctx, rec); err != nil {
			atomic.AddInt64(&w.failed, 1)
			log.WithFields(logger.Fields{"order_id": rec.OrderID}).WithError(err).Error("failed to upload audit record")
			continue
		}
		atomic.AddInt64(&w.written, 1)
		w.log.LogMetric("audit", "records_written", 1, "counter", logger.Fields{"symbol": rec.Symbol})
	}
}

func (w *Writer) upload(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(objectKey(w.prefix, rec)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// objectKey partitions records by day so reconciliation jobs can list a
// single date prefix.
func objectKey(prefix string, rec Record) string {
	day := rec.RecordedAt.Format("2006/01/02")
	if prefix == "" {
		return fmt.Sprintf("%s/%s-%s.json", day, rec.Symbol, rec.ID)
	}
	return fmt.Sprintf("%s/%s/%s-%s.json", prefix, day, rec.Symbol, rec.ID)
}
