package models

import (
	id "esgledger/pkg/domain"
)

// ReportSection belongs to exactly one period. CatalogCode is the only stable
// identity across periods; sections without one cannot be matched automatically.
type ReportSection struct {
	ID              id.SectionID      `json:"id"`
	PeriodID        id.PeriodID       `json:"period_id"`
	CatalogItemID   *id.CatalogItemID `json:"catalog_item_id,omitempty"`
	CatalogCode     string            `json:"catalog_code,omitempty"`
	Title           string            `json:"title"`
	Description     string            `json:"description,omitempty"`
	OwnerID         id.UserID         `json:"owner_id,omitempty"`
	Order           int               `json:"order"`
	SourceSectionID *id.SectionID     `json:"source_section_id,omitempty"`
}

// HasCatalogCode reports whether the section can be matched by code.
func (s *ReportSection) HasCatalogCode() bool {
	return s.CatalogCode != ""
}

// SectionMetrics are derived on read and never stored on the section.
type SectionMetrics struct {
	DataPoints int `json:"data_points"`
	Missing    int `json:"missing"`
	Estimated  int `json:"estimated"`
	Provided   int `json:"provided"`
}

// SectionSummary pairs a section with metrics computed from its data points.
type SectionSummary struct {
	Section ReportSection  `json:"section"`
	Metrics SectionMetrics `json:"metrics"`
}

// Summarize counts the data points belonging to section by gap status.
func Summarize(section ReportSection, dataPoints []*DataPoint) SectionSummary {
	summary := SectionSummary{Section: section}
	for _, dp := range dataPoints {
		if dp.SectionID != section.ID {
			continue
		}
		summary.Metrics.DataPoints++
		switch dp.GapStatus {
		case GapStatusMissing:
			summary.Metrics.Missing++
		case GapStatusEstimated:
			summary.Metrics.Estimated++
		case GapStatusProvided:
			summary.Metrics.Provided++
		}
	}
	return summary
}
