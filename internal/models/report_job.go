package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// CaseReportJob tracks an asynchronous urgency report export.
type CaseReportJob struct {
	ID           string              `db:"id" json:"id"`
	Params       CaseReportJobParams `db:"params" json:"params"`
	Status       ReportStatus        `db:"status" json:"status"`
	Progress     int                 `db:"progress" json:"progress"`
	ResultURL    *string             `db:"result_url" json:"resultUrl,omitempty"`
	CreatedBy    int64               `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time           `db:"created_at" json:"createdAt"`
	FinishedAt   *time.Time          `db:"finished_at" json:"finishedAt,omitempty"`
	ErrorMessage *string             `db:"error_message" json:"errorMessage,omitempty"`
}

// CaseReportJobParams stores the request options as JSONB.
type CaseReportJobParams struct {
	Format ReportFormat       `json:"format"`
	Filter InterventionFilter `json:"filter"`
}

// Value marshals params to JSON for persistence.
func (p CaseReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *CaseReportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = CaseReportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CaseReportJobParams", value)
	}
	if len(data) == 0 {
		*p = CaseReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}
