package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/loan-portal-api/internal/middleware"
	"github.com/noah-isme/loan-portal-api/internal/models"
)

// Routes groups every handler and both session gates.
type Routes struct {
	ApplicantGate middleware.TokenValidator
	StaffGate     middleware.TokenValidator

	Auth         *AuthHandler
	Applications *ApplicationHandler
	Workflow     *WorkflowHandler
	Documents    *DocumentHandler
	Dashboard    *DashboardHandler
	Exports      *ExportHandler
	Health       *HealthHandler
}

// Register mounts the portal routes on the group. Ops endpoints are mounted
// separately by RegisterOps.
func (r Routes) Register(api *gin.RouterGroup) {
	applicant := middleware.Session(r.ApplicantGate)
	optionalApplicant := middleware.OptionalSession(r.ApplicantGate)
	optionalStaff := middleware.OptionalSession(r.StaffGate)
	anySession := middleware.AnySession(r.ApplicantGate, r.StaffGate)
	staff := []gin.HandlerFunc{middleware.Session(r.StaffGate), middleware.RequireRoles(models.RoleStaff, models.RoleAdmin)}

	api.POST("/user-register", r.Auth.Register)
	api.POST("/user-login", r.Auth.Login)
	api.POST("/user-logout", optionalApplicant, r.Auth.Logout)
	api.GET("/user-auth-status", optionalApplicant, r.Auth.AuthStatus)
	api.POST("/user-change-password", applicant, r.Auth.ChangePassword)
	api.POST("/staff-login", r.Auth.StaffLogin)
	api.POST("/logout", optionalStaff, r.Auth.StaffLogout)

	api.POST("/apply-loan", r.Applications.ApplyBasic)
	api.POST("/apply-comprehensive-loan", applicant, r.Applications.ApplyComprehensive)
	api.GET("/user-applications", applicant, r.Applications.UserApplications)
	api.GET("/user-drafts", applicant, r.Applications.Drafts)
	api.GET("/user-alerts", applicant, r.Applications.UserAlerts)
	api.POST("/user-alerts/:id/read", applicant, r.Applications.MarkUserAlertRead)
	api.GET("/user-applications/:id/history", anySession, r.Applications.History)
	api.GET("/user-applications/:id/documents", anySession, r.Documents.List)
	api.POST("/upload-documents", applicant, r.Documents.Upload)
	api.POST("/resubmit-application", applicant, r.Workflow.Resubmit)

	api.GET("/view-document/*filepath", anySession, r.Documents.View)
	api.GET("/documents/:id/link", anySession, r.Documents.SignedLink)
	api.GET("/documents/download", r.Documents.Download)
	api.GET("/admin/exports/download", r.Exports.Download)

	admin := api.Group("", staff...)
	admin.GET("/admin-dashboard", r.Dashboard.Summary)
	admin.GET("/admin/applications", r.Applications.AdminList)
	admin.GET("/admin/applications/:id", r.Dashboard.Detail)
	admin.POST("/admin/applications/:id/review", r.Workflow.StartReview)
	admin.POST("/admin/applications/:id/status", r.Applications.UpdateStatus)
	admin.POST("/approve-application/:id", r.Workflow.Approve)
	admin.POST("/reject-application/:id", r.Workflow.Reject)
	admin.POST("/create-objection/:id", r.Workflow.CreateObjection)
	admin.GET("/admin/alerts", r.Applications.AdminAlerts)
	admin.POST("/admin/alerts/:id/read", r.Applications.MarkAdminAlertRead)
	admin.POST("/admin/documents/:id/verify", r.Documents.Verify)
	admin.POST("/admin/exports", r.Exports.Create)
	admin.GET("/admin/exports/:id", r.Exports.Status)
}

// RegisterOps mounts health, readiness and metrics endpoints.
func (r Routes) RegisterOps(engine *gin.Engine) {
	engine.GET("/health", r.Health.Health)
	engine.GET("/ready", r.Health.Ready)
	engine.GET("/metrics", r.Health.Prometheus)
}
