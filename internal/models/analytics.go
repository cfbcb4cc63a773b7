package models

import "time"

// StatusCount is a row of a GROUP BY status/role aggregation.
type StatusCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// AdminOverview summarises the whole platform.
type AdminOverview struct {
	UsersByRole         map[string]int `json:"users_by_role"`
	PendingFormateurs   int            `json:"pending_formateurs"`
	FormationsTotal     int            `json:"formations_total"`
	FormationsPublished int            `json:"formations_published"`
	EnrollmentsByStatus map[string]int `json:"enrollments_by_status"`
	TotalRevenue        float64        `json:"total_revenue"`
	CompletedFormations int            `json:"completed_formations"`
	CompletionRate      float64        `json:"completion_rate"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// MonthlyRevenue is a 12 slot January..December revenue series.
type MonthlyRevenue struct {
	Year   int         `json:"year"`
	Months [12]float64 `json:"months"`
	Total  float64     `json:"total"`
}

// InvoiceAmount is the raw input of revenue bucketing.
type InvoiceAmount struct {
	Amount   float64   `db:"amount"`
	IssuedAt time.Time `db:"issued_at"`
}

// TopFormation ranks a formation by approved enrollments.
type TopFormation struct {
	FormationID         string  `db:"formation_id" json:"formation_id"`
	Title               string  `db:"title" json:"title"`
	FormateurName       string  `db:"formateur_name" json:"formateur_name"`
	ApprovedEnrollments int     `db:"approved_enrollments" json:"approved_enrollments"`
	Revenue             float64 `db:"revenue" json:"revenue"`
}

// FormateurAnalytics summarises a formateur's own catalogue.
type FormateurAnalytics struct {
	FormationsTotal     int            `json:"formations_total"`
	FormationsPublished int            `json:"formations_published"`
	EnrollmentsByStatus map[string]int `json:"enrollments_by_status"`
	Revenue             float64        `json:"revenue"`
}

// RevenueExport is a rendered revenue report.
type RevenueExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SystemMetrics is a point-in-time view of process level counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	DocumentsRendered        uint64    `json:"documents_rendered"`
	DocumentFailures         uint64    `json:"document_failures"`
	PendingJobs              int       `json:"pending_jobs"`
	JobFailures              uint64    `json:"job_failures"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
