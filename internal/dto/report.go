package dto

import "github.com/noah-isme/sma-intervention-api/internal/models"

// CaseReportRequest captures POST /cases/reports payload.
type CaseReportRequest struct {
	Format   models.ReportFormat       `json:"format" validate:"required,oneof=csv pdf"`
	Status   models.InterventionStatus `json:"status" validate:"omitempty,case_status"`
	Type     models.InterventionType   `json:"type" validate:"omitempty,case_type"`
	Severity models.Severity           `json:"severity" validate:"omitempty,case_severity"`
	Priority int                       `json:"priority" validate:"omitempty,min=1,max=5"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
