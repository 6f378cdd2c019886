// Package storage persists audit findings, risks and report metadata in a
// relational database. SQLite is the default backend so a single binary can
// run audits without external services.
package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Risk is a persisted detection produced by the risk scanner.
type Risk struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	ScanID     string  `gorm:"index" json:"scan_id"`
	Source     string  `json:"source"`
	EntityType string  `json:"entity_type"`
	Severity   string  `json:"severity"`
	Score      float64 `json:"score"`
	Detail     string  `json:"detail"`
	CreatedAt  time.Time
}

// Finding is a persisted policy-match result tying risks to policy clauses.
type Finding struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ScanID    string  `gorm:"index" json:"scan_id"`
	RiskType  string  `json:"risk_type"`
	PolicyID  string  `json:"policy_id"`
	Policy    string  `json:"policy"`
	Relevance float64 `json:"relevance"`
	Gap       bool    `json:"gap"`
	CreatedAt time.Time
}

// ReportMetadata records a generated report and where its JSON artifact lives.
type ReportMetadata struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ReportID   string `gorm:"uniqueIndex" json:"report_id"`
	WorkflowID string `gorm:"index" json:"workflow_id"`
	Title      string `json:"title"`
	Path       string `json:"path"`
	RiskCount  int    `json:"risk_count"`
	GapCount   int    `json:"gap_count"`
	CreatedAt  time.Time
}

// Store wraps the database handle behind audit-domain operations.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at dsn (a file path, or ":memory:")
// and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&Risk{}, &Finding{}, &ReportMetadata{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveRisks stores all risks from one scan in a single transaction.
func (s *Store) SaveRisks(risks []Risk) error {
	if len(risks) == 0 {
		return nil
	}
	if err := s.db.Create(&risks).Error; err != nil {
		return fmt.Errorf("save risks: %w", err)
	}
	return nil
}

// RisksByScan returns every risk recorded for a scan id.
func (s *Store) RisksByScan(scanID string) ([]Risk, error) {
	var risks []Risk
	if err := s.db.Where("scan_id = ?", scanID).Find(&risks).Error; err != nil {
		return nil, fmt.Errorf("load risks: %w", err)
	}
	return risks, nil
}

// SaveFindings stores the policy-match findings for a scan.
func (s *Store) SaveFindings(findings []Finding) error {
	if len(findings) == 0 {
		return nil
	}
	if err := s.db.Create(&findings).Error; err != nil {
		return fmt.Errorf("save findings: %w", err)
	}
	return nil
}

// FindingsByScan returns every finding recorded for a scan id.
func (s *Store) FindingsByScan(scanID string) ([]Finding, error) {
	var findings []Finding
	if err := s.db.Where("scan_id = ?", scanID).Find(&findings).Error; err != nil {
		return nil, fmt.Errorf("load findings: %w", err)
	}
	return findings, nil
}

// SaveReport records a generated report's metadata.
func (s *Store) SaveReport(meta *ReportMetadata) error {
	if err := s.db.Create(meta).Error; err != nil {
		return fmt.Errorf("save report metadata: %w", err)
	}
	return nil
}

// Report looks up report metadata by its public report id.
func (s *Store) Report(reportID string) (*ReportMetadata, error) {
	var meta ReportMetadata
	if err := s.db.Where("report_id = ?", reportID).First(&meta).Error; err != nil {
		return nil, fmt.Errorf("load report %s: %w", reportID, err)
	}
	return &meta, nil
}

// Reports lists report metadata, newest first.
func (s *Store) Reports(limit int) ([]ReportMetadata, error) {
	var metas []ReportMetadata
	q := s.db.Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&metas).Error; err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return metas, nil
}
