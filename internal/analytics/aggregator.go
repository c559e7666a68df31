package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biolinkhq/biolink/internal/biolinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opAggregatorNew    = "analytics.aggregator.new"
	opTotalCounts      = "analytics.total_counts"
	opPerLinkClicks    = "analytics.per_link_clicks"
	opDailySeries      = "analytics.daily_series"
	opTopLinks         = "analytics.top_links"
	opDeviceBreakdown  = "analytics.device_breakdown"
	opReferrerBreakdwn = "analytics.referrer_breakdown"
	opQrScanCount      = "analytics.qr_scan_count"
	opOverview         = "analytics.overview"
	opAdvanced         = "analytics.advanced"

	reasonMissingActor = "missing_actor"
	reasonNotFound     = "not_found"
	reasonForbidden    = "forbidden"
	reasonInvalidDays  = "invalid_days"

	// MaxReportDays bounds the window of an advanced report.
	MaxReportDays = 365

	dayExpression = "date(%s, 'unixepoch')"
)

// ErrInvalidDays indicates a report window outside 1..MaxReportDays.
var ErrInvalidDays = errors.New("analytics: days must be between 1 and 365")

// Limits configures the aggregator's fixed cut-offs.
type Limits struct {
	TopLinks     int
	Referrers    int
	OverviewDays int
	DefaultDays  int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{TopLinks: 10, Referrers: 10, OverviewDays: 7, DefaultDays: 30}
}

// AggregatorConfig describes the dependencies of the aggregator.
type AggregatorConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Limits   Limits
}

// Aggregator derives reports from recorded events. It never writes.
type Aggregator struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
	guard  *biolinks.Guard
	limits Limits
}

// Window bounds a query by event time, inclusive on both ends. Zero bounds are open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Unbounded is the window covering every event.
func Unbounded() Window {
	return Window{}
}

// LastDays covers the days before now up to and including now.
func LastDays(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

func (w Window) clause(column string) (string, []interface{}) {
	var parts []string
	var args []interface{}
	if !w.Start.IsZero() {
		parts = append(parts, column+" >= ?")
		args = append(args, w.Start.UTC().Unix())
	}
	if !w.End.IsZero() {
		parts = append(parts, column+" <= ?")
		args = append(args, w.End.UTC().Unix())
	}
	return strings.Join(parts, " AND "), args
}

func (w Window) scope(column string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		clause, args := w.clause(column)
		if clause == "" {
			return tx
		}
		return tx.Where(clause, args...)
	}
}

// Totals counts views and clicks independently.
type Totals struct {
	Views  int64 `json:"views"`
	Clicks int64 `json:"clicks"`
}

// LinkClicks is the click count attributed to one link.
type LinkClicks struct {
	LinkID   string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Position int64  `json:"-"`
	Clicks   int64  `json:"clicks"`
}

// DailyPoint holds the counts of one calendar date (UTC, YYYY-MM-DD).
type DailyPoint struct {
	Date   string `json:"date"`
	Views  int64  `json:"views"`
	Clicks int64  `json:"clicks"`
}

// Bucket is one group of a breakdown.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Overview is the dashboard summary of a biolink.
type Overview struct {
	Totals        Totals       `json:"totals"`
	PerLinkClicks []LinkClicks `json:"per_link_clicks"`
	Daily         []DailyPoint `json:"daily"`
}

// ReportTotals summarises an advanced report window.
type ReportTotals struct {
	Views      int64 `json:"views"`
	Clicks     int64 `json:"clicks"`
	ActiveDays int64 `json:"active_days"`
	QrScans    int64 `json:"qr_scans"`
}

// Report is the advanced analytics view over the last Days days.
type Report struct {
	Days      int          `json:"days"`
	Daily     []DailyPoint `json:"daily"`
	TopLinks  []LinkClicks `json:"top_links"`
	Devices   []Bucket     `json:"devices"`
	Referrers []Bucket     `json:"referrers"`
	Totals    ReportTotals `json:"totals"`
}

// NewAggregator validates the configuration and constructs an Aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Database == nil {
		return nil, biolinks.NewServiceError(biolinks.KindInternal, opAggregatorNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limits := cfg.Limits
	defaults := DefaultLimits()
	if limits.TopLinks <= 0 {
		limits.TopLinks = defaults.TopLinks
	}
	if limits.Referrers <= 0 {
		limits.Referrers = defaults.Referrers
	}
	if limits.OverviewDays <= 0 {
		limits.OverviewDays = defaults.OverviewDays
	}
	if limits.DefaultDays <= 0 {
		limits.DefaultDays = defaults.DefaultDays
	}
	return &Aggregator{
		db:     cfg.Database,
		clock:  clock,
		logger: logger,
		guard:  biolinks.NewGuard(cfg.Database),
		limits: limits,
	}, nil
}

// TotalCounts counts view and click events of an owned biolink within window.
func (a *Aggregator) TotalCounts(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window) (Totals, error) {
	return owned(ctx, a, opTotalCounts, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) (Totals, error) {
		return totalCounts(tx, biolinkID, window)
	})
}

// PerLinkClicks lists every link of an owned biolink with its click count, zero included.
func (a *Aggregator) PerLinkClicks(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window) ([]LinkClicks, error) {
	return owned(ctx, a, opPerLinkClicks, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) ([]LinkClicks, error) {
		return perLinkClicks(tx, biolinkID, window)
	})
}

// DailySeries returns view and click counts per calendar date with at least one event.
func (a *Aggregator) DailySeries(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window) ([]DailyPoint, error) {
	return owned(ctx, a, opDailySeries, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) ([]DailyPoint, error) {
		return dailySeries(tx, biolinkID, window)
	})
}

// TopLinks returns up to limit clicked links ordered by click count.
func (a *Aggregator) TopLinks(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window, limit int) ([]LinkClicks, error) {
	return owned(ctx, a, opTopLinks, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) ([]LinkClicks, error) {
		return topLinks(tx, biolinkID, window, limit)
	})
}

// DeviceBreakdown groups events with a known device class.
func (a *Aggregator) DeviceBreakdown(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window) ([]Bucket, error) {
	return owned(ctx, a, opDeviceBreakdown, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) ([]Bucket, error) {
		return breakdown(tx, "device", biolinkID, window, 0)
	})
}

// ReferrerBreakdown groups events with a known referrer, capped at the configured limit.
func (a *Aggregator) ReferrerBreakdown(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window) ([]Bucket, error) {
	return owned(ctx, a, opReferrerBreakdwn, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) ([]Bucket, error) {
		return breakdown(tx, "referrer", biolinkID, window, a.limits.Referrers)
	})
}

// QrScanCount counts QR scans within window.
func (a *Aggregator) QrScanCount(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, window Window) (int64, error) {
	return owned(ctx, a, opQrScanCount, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) (int64, error) {
		return qrScanCount(tx, biolinkID, window)
	})
}

// Overview reports unbounded totals and per-link clicks plus the recent daily series.
func (a *Aggregator) Overview(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID) (Overview, error) {
	overviewDays := DefaultLimits().OverviewDays
	if a != nil && a.limits.OverviewDays > 0 {
		overviewDays = a.limits.OverviewDays
	}
	recent := LastDays(a.now(), overviewDays)
	return owned(ctx, a, opOverview, actor, biolinkID, biolinks.KindNotFound, func(tx *gorm.DB) (Overview, error) {
		totals, err := totalCounts(tx, biolinkID, Unbounded())
		if err != nil {
			return Overview{}, err
		}
		clicks, err := perLinkClicks(tx, biolinkID, Unbounded())
		if err != nil {
			return Overview{}, err
		}
		daily, err := dailySeries(tx, biolinkID, recent)
		if err != nil {
			return Overview{}, err
		}
		return Overview{Totals: totals, PerLinkClicks: clicks, Daily: daily}, nil
	})
}

// Advanced reports the last days days. A zero days uses the configured default.
// Ownership failures surface as Forbidden.
func (a *Aggregator) Advanced(ctx context.Context, actor biolinks.Actor, biolinkID biolinks.ResourceID, days int) (Report, error) {
	if days < 1 || days > MaxReportDays {
		return Report{}, biolinks.NewServiceError(biolinks.KindInvalidInput, opAdvanced, reasonInvalidDays, fmt.Errorf("%w: %d", ErrInvalidDays, days))
	}
	window := LastDays(a.now(), days)
	return owned(ctx, a, opAdvanced, actor, biolinkID, biolinks.KindForbidden, func(tx *gorm.DB) (Report, error) {
		report := Report{Days: days}
		var err error
		if report.Daily, err = dailySeries(tx, biolinkID, window); err != nil {
			return Report{}, err
		}
		if report.TopLinks, err = topLinks(tx, biolinkID, window, a.limits.TopLinks); err != nil {
			return Report{}, err
		}
		if report.Devices, err = breakdown(tx, "device", biolinkID, window, 0); err != nil {
			return Report{}, err
		}
		if report.Referrers, err = breakdown(tx, "referrer", biolinkID, window, a.limits.Referrers); err != nil {
			return Report{}, err
		}
		totals, err := totalCounts(tx, biolinkID, window)
		if err != nil {
			return Report{}, err
		}
		activeDays, err := activeDayCount(tx, biolinkID, window)
		if err != nil {
			return Report{}, err
		}
		scans, err := qrScanCount(tx, biolinkID, window)
		if err != nil {
			return Report{}, err
		}
		report.Totals = ReportTotals{Views: totals.Views, Clicks: totals.Clicks, ActiveDays: activeDays, QrScans: scans}
		return report, nil
	})
}

// owned runs query inside one read transaction after the ownership check, so every
// figure of a report comes from the same snapshot.
func owned[T any](ctx context.Context, a *Aggregator, operation string, actor biolinks.Actor, biolinkID biolinks.ResourceID, denied biolinks.ErrorKind, query func(tx *gorm.DB) (T, error)) (T, error) {
	var result T
	if a == nil || a.db == nil {
		return result, biolinks.NewServiceError(biolinks.KindInternal, operation, reasonMissingDatabase, errMissingDatabase)
	}
	var denial error
	txErr := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := a.guard.OwnedBiolink(tx, actor, biolinkID); err != nil {
			switch {
			case errors.Is(err, biolinks.ErrMissingActor):
				denial = biolinks.NewServiceError(biolinks.KindUnauthorized, operation, reasonMissingActor, err)
			case errors.Is(err, biolinks.ErrResourceNotFound) && denied == biolinks.KindForbidden:
				denial = biolinks.NewServiceError(biolinks.KindForbidden, operation, reasonForbidden, err)
			case errors.Is(err, biolinks.ErrResourceNotFound):
				denial = biolinks.NewServiceError(biolinks.KindNotFound, operation, reasonNotFound, err)
			default:
				return err
			}
			return denial
		}
		value, err := query(tx)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if denial != nil {
		return result, denial
	}
	if txErr != nil {
		a.logger.Error("analytics aggregator error",
			zap.String(fieldOperation, operation),
			zap.String(fieldReason, reasonQueryFailed),
			zap.String(fieldBiolinkID, biolinkID.String()),
			zap.Error(txErr))
		return result, biolinks.NewServiceError(biolinks.KindInternal, operation, reasonQueryFailed, txErr)
	}
	return result, nil
}

func (a *Aggregator) now() time.Time {
	if a == nil || a.clock == nil {
		return time.Now()
	}
	return a.clock()
}

// DefaultDays is the report window used when a caller does not choose one.
func (a *Aggregator) DefaultDays() int {
	if a == nil || a.limits.DefaultDays <= 0 {
		return DefaultLimits().DefaultDays
	}
	return a.limits.DefaultDays
}

func totalCounts(tx *gorm.DB, biolinkID biolinks.ResourceID, window Window) (Totals, error) {
	var totals Totals
	err := tx.Model(&biolinks.AnalyticsEvent{}).
		Select("COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS views, "+
			"COALESCE(SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END), 0) AS clicks",
			biolinks.EventTypeView, biolinks.EventTypeClick).
		Where("biolink_id = ?", biolinkID.String()).
		Scopes(window.scope("created_at_s")).
		Scan(&totals).Error
	return totals, err
}

func perLinkClicks(tx *gorm.DB, biolinkID biolinks.ResourceID, window Window) ([]LinkClicks, error) {
	joinClause := "LEFT JOIN analytics_events ON analytics_events.link_id = links.id " +
		"AND analytics_events.biolink_id = links.biolink_id AND analytics_events.event_type = ?"
	joinArgs := []interface{}{biolinks.EventTypeClick}
	if clause, args := window.clause("analytics_events.created_at_s"); clause != "" {
		joinClause += " AND " + clause
		joinArgs = append(joinArgs, args...)
	}

	rows := make([]LinkClicks, 0)
	err := tx.Table("links").
		Select("links.id AS link_id, links.title AS title, links.url AS url, links.position AS position, COUNT(analytics_events.id) AS clicks").
		Joins(joinClause, joinArgs...).
		Where("links.biolink_id = ?", biolinkID.String()).
		Group("links.id, links.title, links.url, links.position").
		Order("clicks DESC").
		Order("links.position ASC").
		Order("links.id ASC").
		Scan(&rows).Error
	return rows, err
}

func topLinks(tx *gorm.DB, biolinkID biolinks.ResourceID, window Window, limit int) ([]LinkClicks, error) {
	rows := make([]LinkClicks, 0)
	err := tx.Table("analytics_events").
		Select("links.id AS link_id, links.title AS title, links.url AS url, links.position AS position, COUNT(*) AS clicks").
		Joins("JOIN links ON links.id = analytics_events.link_id").
		Where("analytics_events.biolink_id = ? AND analytics_events.event_type = ?", biolinkID.String(), biolinks.EventTypeClick).
		Scopes(window.scope("analytics_events.created_at_s")).
		Group("links.id, links.title, links.url, links.position").
		Order("clicks DESC").
		Order("links.position ASC").
		Order("links.id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func dailySeries(tx *gorm.DB, biolinkID biolinks.ResourceID, window Window) ([]DailyPoint, error) {
	day := fmt.Sprintf(dayExpression, "created_at_s")
	rows := make([]DailyPoint, 0)
	err := tx.Model(&biolinks.AnalyticsEvent{}).
		Select(day+" AS date, "+
			"SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS views, "+
			"SUM(CASE WHEN event_type = ? THEN 1 ELSE 0 END) AS clicks",
			biolinks.EventTypeView, biolinks.EventTypeClick).
		Where("biolink_id = ?", biolinkID.String()).
		Scopes(window.scope("created_at_s")).
		Group(day).
		Order(day + " ASC").
		Scan(&rows).Error
	return rows, err
}

func breakdown(tx *gorm.DB, column string, biolinkID biolinks.ResourceID, window Window, limit int) ([]Bucket, error) {
	rows := make([]Bucket, 0)
	query := tx.Model(&biolinks.AnalyticsEvent{}).
		Select(column+" AS value, COUNT(*) AS count").
		Where("biolink_id = ? AND "+column+" IS NOT NULL", biolinkID.String()).
		Scopes(window.scope("created_at_s")).
		Group(column).
		Order("count DESC").
		Order(column + " ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Scan(&rows).Error
	return rows, err
}

func activeDayCount(tx *gorm.DB, biolinkID biolinks.ResourceID, window Window) (int64, error) {
	var count int64
	err := tx.Model(&biolinks.AnalyticsEvent{}).
		Select("COUNT(DISTINCT "+fmt.Sprintf(dayExpression, "created_at_s")+")").
		Where("biolink_id = ?", biolinkID.String()).
		Scopes(window.scope("created_at_s")).
		Scan(&count).Error
	return count, err
}

func qrScanCount(tx *gorm.DB, biolinkID biolinks.ResourceID, window Window) (int64, error) {
	var count int64
	err := tx.Model(&biolinks.QrScan{}).
		Where("biolink_id = ?", biolinkID.String()).
		Scopes(window.scope("scanned_at_s")).
		Count(&count).Error
	return count, err
}
