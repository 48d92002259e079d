package service

import (
	"DedupVault/internal/repo"
	"DedupVault/model"
	"time"

	"gorm.io/gorm"
)

// ListDedupEvents returns dedup events in a time window, newest first.
// Zero start or end leaves that side of the window open.
func ListDedupEvents(start, end time.Time, limit int) ([]model.DedupEvent, error) {
	q := eventsInWindow(start, end)
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []model.DedupEvent
	if err := q.Order("detected_at desc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// SavingsSummary aggregates deduplication over a window. It is derived
// entirely from the event log and recomputed per request.
type SavingsSummary struct {
	PeriodStart        time.Time `json:"period_start"`
	PeriodEnd          time.Time `json:"period_end"`
	TotalDuplicates    int64     `json:"total_duplicates_detected"`
	TotalBytesSaved    int64     `json:"total_storage_saved_bytes"`
	UniqueContents     int64     `json:"unique_contents_shared"`
	MostDuplicatedType string    `json:"most_duplicated_type,omitempty"`
}

// ComputeSavings aggregates the event log over a window.
func ComputeSavings(start, end time.Time) (*SavingsSummary, error) {
	summary := &SavingsSummary{
		PeriodStart: start,
		PeriodEnd:   end,
	}

	var totals struct {
		Total int64
		Saved int64
	}
	if err := eventsInWindow(start, end).
		Select("COUNT(*) AS total, COALESCE(SUM(size_saved), 0) AS saved").
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	summary.TotalDuplicates = totals.Total
	summary.TotalBytesSaved = totals.Saved

	if err := eventsInWindow(start, end).
		Distinct("fingerprint").
		Count(&summary.UniqueContents).Error; err != nil {
		return nil, err
	}

	var top struct {
		MediaType string
		Cnt       int64
	}
	err := eventsInWindow(start, end).
		Select("media_type, COUNT(*) AS cnt").
		Group("media_type").
		Order("cnt desc").
		Limit(1).
		Scan(&top).Error
	if err != nil {
		return nil, err
	}
	summary.MostDuplicatedType = top.MediaType

	return summary, nil
}

func eventsInWindow(start, end time.Time) *gorm.DB {
	q := repo.Db.Model(&model.DedupEvent{})
	if !start.IsZero() {
		q = q.Where("detected_at >= ?", start)
	}
	if !end.IsZero() {
		q = q.Where("detected_at <= ?", end)
	}
	return q
}

// CurrentWeek returns the Monday-to-Sunday window containing now, the
// default reporting window.
func CurrentWeek(now time.Time) (time.Time, time.Time) {
	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	year, month, day := now.AddDate(0, 0, -(weekday - 1)).Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 7).Add(-time.Nanosecond)
	return start, end
}
