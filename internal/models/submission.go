package models

import "time"

type SubmissionMode string

const (
	ModeText SubmissionMode = "text"
	ModeCode SubmissionMode = "code"
)

type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "pending"
	StatusProcessing SubmissionStatus = "processing"
	StatusCompleted  SubmissionStatus = "completed"
	StatusFailed     SubmissionStatus = "failed"
)

// Terminal reports whether no further status transitions can follow.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ClassifyRisk maps a final similarity score onto the server's risk bands.
func ClassifyRisk(score float64) RiskLevel {
	switch {
	case score >= 0.5:
		return RiskHigh
	case score >= 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Scores holds the per-algorithm similarity values. An algorithm that did
// not run for the submission's mode reports nil.
type Scores struct {
	Jaccard   *float64 `json:"jaccard"`
	Cosine    *float64 `json:"cosine"`
	LCS       *float64 `json:"lcs"`
	Winnowing *float64 `json:"winnowing"`
	AST       *float64 `json:"ast"`
}

// Report is produced once the analysis completes and never changes after.
type Report struct {
	ID               int64     `json:"id"`
	Language         *string   `json:"language"`
	Scores           Scores    `json:"scores"`
	FinalSimilarity  float64   `json:"final_similarity"`
	RiskLevel        RiskLevel `json:"risk_level"`
	ProcessingTimeMs *int64    `json:"processing_time_ms"`
	AlgorithmVersion *string   `json:"algorithm_version"`
	CreatedAt        time.Time `json:"created_at"`
}

type SubmissionListItem struct {
	ID              int64            `json:"id"`
	Mode            SubmissionMode   `json:"mode"`
	File1Name       string           `json:"file1_name"`
	File2Name       string           `json:"file2_name"`
	Status          SubmissionStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	FinalSimilarity *float64         `json:"final_similarity"`
	RiskLevel       *RiskLevel       `json:"risk_level"`
}

// SubmissionDetail is the full submission record. Report is non-nil iff
// the status is completed.
type SubmissionDetail struct {
	ID               int64            `json:"id"`
	Mode             SubmissionMode   `json:"mode"`
	File1Name        string           `json:"file1_name"`
	File2Name        string           `json:"file2_name"`
	LanguageOverride *string          `json:"language_override"`
	Status           SubmissionStatus `json:"status"`
	ErrorMessage     *string          `json:"error_message"`
	CreatedAt        time.Time        `json:"created_at"`
	CompletedAt      *time.Time       `json:"completed_at"`
	Report           *Report          `json:"report"`
}
