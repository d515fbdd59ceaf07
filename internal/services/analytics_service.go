package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/repositories"
)

const analyticsDefaultTopN = 5

// ErrAnalyticsInvalidInput signals a malformed analytics query.
var ErrAnalyticsInvalidInput = errors.New("analytics: invalid input")

// SavedReport describes where an uploaded report landed and how to fetch it.
type SavedReport struct {
	ObjectPath  string
	DownloadURL string
	ExpiresAt   time.Time
}

// ReportStore uploads rendered reports to object storage and returns a
// time-limited download URL.
type ReportStore interface {
	SaveReport(ctx context.Context, fileName string, contentType string, data []byte) (SavedReport, error)
}

// AnalyticsServiceDeps bundles collaborators for the analytics reducer.
type AnalyticsServiceDeps struct {
	Orders  repositories.OrderRepository
	Reports ReportStore

	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type analyticsService struct {
	orders  repositories.OrderRepository
	reports ReportStore
	clock   func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewAnalyticsService wires dependencies into a concrete AnalyticsService implementation.
func NewAnalyticsService(deps AnalyticsServiceDeps) (AnalyticsService, error) {
	if deps.Orders == nil {
		return nil, errors.New("analytics service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &analyticsService{
		orders:  deps.Orders,
		reports: deps.Reports,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Summarize reduces the orders created inside the window into summary
// statistics. An empty window yields a summary of zeros and empty lists,
// never an error.
func (s *analyticsService) Summarize(ctx context.Context, query AnalyticsQuery) (AnalyticsSummary, error) {
	from, to, topN, err := s.normaliseQuery(query)
	if err != nil {
		return AnalyticsSummary{}, err
	}

	orders, err := s.orders.ListAll(ctx, domain.RangeQuery[time.Time]{From: &from, To: &to})
	if err != nil {
		return AnalyticsSummary{}, fmt.Errorf("%w: %v", ErrOrderStore, err)
	}

	return reduceOrders(orders, from, to, topN), nil
}

// Export renders the summary as CSV and uploads it to the report store.
func (s *analyticsService) Export(ctx context.Context, query AnalyticsQuery) (AnalyticsExport, error) {
	if s.reports == nil {
		return AnalyticsExport{}, errors.New("analytics service: report store is not configured")
	}

	summary, err := s.Summarize(ctx, query)
	if err != nil {
		return AnalyticsExport{}, err
	}

	data, rows, err := renderSummaryCSV(summary)
	if err != nil {
		return AnalyticsExport{}, fmt.Errorf("analytics: render report: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s_%s.csv",
		summary.From.UTC().Format("20060102"),
		summary.To.UTC().Format("20060102"),
		s.clock().UTC().Format("20060102T150405"))

	saved, err := s.reports.SaveReport(ctx, fileName, "text/csv", data)
	if err != nil {
		return AnalyticsExport{}, fmt.Errorf("analytics: upload report: %w", err)
	}

	s.logger(ctx, "analytics.export.saved", map[string]any{
		"path": saved.ObjectPath,
		"rows": rows,
	})
	return AnalyticsExport{
		ObjectPath:  saved.ObjectPath,
		DownloadURL: saved.DownloadURL,
		ExpiresAt:   saved.ExpiresAt,
		RowCount:    rows,
	}, nil
}

func (s *analyticsService) normaliseQuery(query AnalyticsQuery) (time.Time, time.Time, int, error) {
	to := s.clock().UTC()
	if query.To != nil {
		to = query.To.UTC()
	}
	from := to.AddDate(0, 0, -30)
	if query.From != nil {
		from = query.From.UTC()
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: window start is after its end", ErrAnalyticsInvalidInput)
	}
	topN := query.TopN
	if topN <= 0 {
		topN = analyticsDefaultTopN
	}
	return from, to, topN, nil
}

func reduceOrders(orders []domain.Order, from, to time.Time, topN int) AnalyticsSummary {
	summary := AnalyticsSummary{
		From:         from,
		To:           to,
		ByStatus:     []domain.StatusBucket{},
		TopProducts:  []domain.ProductStat{},
		TopCustomers: []domain.CustomerStat{},
		ByDay:        []domain.DailyStat{},
	}

	statusBuckets := make(map[domain.OrderStatus]*domain.StatusBucket)
	productStats := make(map[string]*domain.ProductStat)
	customerStats := make(map[string]*domain.CustomerStat)
	dailyStats := make(map[string]*domain.DailyStat)

	for _, order := range orders {
		summary.OrderCount++
		// Revenue excludes orders whose money has been or will be returned.
		countable := order.Status != domain.OrderStatusCancelled &&
			order.Status != domain.OrderStatusDeclined &&
			order.Status != domain.OrderStatusRefunded
		if countable {
			summary.Revenue += order.Totals.Total
		}

		bucket := statusBuckets[order.Status]
		if bucket == nil {
			bucket = &domain.StatusBucket{Status: order.Status}
			statusBuckets[order.Status] = bucket
		}
		bucket.Count++
		bucket.Amount += order.Totals.Total

		day := order.CreatedAt.UTC().Format("2006-01-02")
		daily := dailyStats[day]
		if daily == nil {
			daily = &domain.DailyStat{Day: day}
			dailyStats[day] = daily
		}
		daily.Orders++
		if countable {
			daily.Revenue += order.Totals.Total
		}

		if !countable {
			continue
		}
		for _, item := range order.Items {
			stat := productStats[item.ProductID]
			if stat == nil {
				stat = &domain.ProductStat{ProductID: item.ProductID, Name: item.Name}
				productStats[item.ProductID] = stat
			}
			stat.Quantity += item.Quantity
			stat.Revenue += item.UnitPrice * float64(item.Quantity)
		}
		if order.Customer.ID != "" {
			stat := customerStats[order.Customer.ID]
			if stat == nil {
				stat = &domain.CustomerStat{
					CustomerID: order.Customer.ID,
					Name:       order.Customer.Name,
					Email:      order.Customer.Email,
				}
				customerStats[order.Customer.ID] = stat
			}
			stat.Orders++
			stat.Spend += order.Totals.Total
		}
	}

	for _, status := range domain.OrderStatuses {
		if bucket, ok := statusBuckets[status]; ok {
			summary.ByStatus = append(summary.ByStatus, *bucket)
		}
	}

	for _, stat := range productStats {
		summary.TopProducts = append(summary.TopProducts, *stat)
	}
	sort.Slice(summary.TopProducts, func(i, j int) bool {
		a, b := summary.TopProducts[i], summary.TopProducts[j]
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.ProductID < b.ProductID
	})
	if len(summary.TopProducts) > topN {
		summary.TopProducts = summary.TopProducts[:topN]
	}

	for _, stat := range customerStats {
		summary.TopCustomers = append(summary.TopCustomers, *stat)
	}
	sort.Slice(summary.TopCustomers, func(i, j int) bool {
		a, b := summary.TopCustomers[i], summary.TopCustomers[j]
		if a.Spend != b.Spend {
			return a.Spend > b.Spend
		}
		return a.CustomerID < b.CustomerID
	})
	if len(summary.TopCustomers) > topN {
		summary.TopCustomers = summary.TopCustomers[:topN]
	}

	for _, stat := range dailyStats {
		summary.ByDay = append(summary.ByDay, *stat)
	}
	sort.Slice(summary.ByDay, func(i, j int) bool {
		return summary.ByDay[i].Day < summary.ByDay[j].Day
	})

	return summary
}

func renderSummaryCSV(summary AnalyticsSummary) ([]byte, int, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	rows := 0
	write := func(record ...string) error {
		rows++
		return writer.Write(record)
	}

	if err := write("section", "key", "count", "amount"); err != nil {
		return nil, 0, err
	}
	if err := write("summary", "orders", strconv.Itoa(summary.OrderCount), formatAmount(summary.Revenue)); err != nil {
		return nil, 0, err
	}
	for _, bucket := range summary.ByStatus {
		if err := write("status", string(bucket.Status), strconv.Itoa(bucket.Count), formatAmount(bucket.Amount)); err != nil {
			return nil, 0, err
		}
	}
	for _, stat := range summary.TopProducts {
		if err := write("product", stat.ProductID, strconv.Itoa(stat.Quantity), formatAmount(stat.Revenue)); err != nil {
			return nil, 0, err
		}
	}
	for _, stat := range summary.TopCustomers {
		if err := write("customer", stat.CustomerID, strconv.Itoa(stat.Orders), formatAmount(stat.Spend)); err != nil {
			return nil, 0, err
		}
	}
	for _, stat := range summary.ByDay {
		if err := write("day", stat.Day, strconv.Itoa(stat.Orders), formatAmount(stat.Revenue)); err != nil {
			return nil, 0, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), rows, nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
