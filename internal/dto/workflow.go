package dto

// ObjectionRequest captures POST /create-objection/:id.
type ObjectionRequest struct {
	Reason             string `json:"objection_reason" form:"objection_reason" validate:"required,max=2000"`
	RequestedDocuments string `json:"requested_documents" form:"requested_documents" validate:"omitempty,max=2000"`
}

// DecisionRequest captures approve and reject payloads.
type DecisionRequest struct {
	Notes string `json:"admin_notes" form:"admin_notes" validate:"omitempty,max=2000"`
}

// ResubmitRequest captures POST /resubmit-application.
type ResubmitRequest struct {
	ApplicationID string `json:"application_id" form:"application_id" validate:"required,len=8,alphanum"`
}

// VerifyDocumentRequest captures POST /admin/documents/:id/verify.
type VerifyDocumentRequest struct {
	Verification string `json:"verification" validate:"required,oneof=approved rejected"`
	Comment      string `json:"comment" validate:"omitempty,max=1000"`
}

// UploadDocumentForm captures the non-file fields of POST /upload-documents.
type UploadDocumentForm struct {
	ApplicationID string `form:"application_id" validate:"required,len=8,alphanum"`
	DocumentType  string `form:"document_type" validate:"required,max=80"`
}

// SignedLinkResponse carries a time-limited download link.
type SignedLinkResponse struct {
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}
