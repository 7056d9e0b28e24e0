package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-intervention-api/internal/middleware"
	"github.com/noah-isme/sma-intervention-api/internal/models"
)

// CaseRoutes groups the handlers mounted under /cases. Reports is optional.
type CaseRoutes struct {
	Cases    *InterventionHandler
	Comments *CommentHandler
	Reports  *ReportHandler
}

// Register mounts the case routes. auth guards every route except the
// signed report download, which carries its own token.
func (r CaseRoutes) Register(api *gin.RouterGroup, auth gin.HandlerFunc) {
	cases := api.Group("/cases")

	if r.Reports != nil {
		cases.GET("/reports/download/:token", r.Reports.Download)
	}

	secured := cases.Group("")
	secured.Use(auth)

	secured.GET("", r.Cases.List)
	secured.POST("", r.Cases.Create)
	secured.GET("/by-student/:studentId", r.Cases.ByStudent)
	secured.GET("/:id", r.Cases.Get)
	secured.PUT("/:id", r.Cases.Update)
	secured.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), r.Cases.Delete)
	secured.GET("/:id/score", r.Cases.Score)

	secured.POST("/:id/comments", r.Comments.Add)
	secured.GET("/:id/comments", r.Comments.List)
	secured.PUT("/:id/comments/:commentId", r.Comments.Edit)
	secured.DELETE("/:id/comments/:commentId", r.Comments.Remove)

	if r.Reports != nil {
		secured.POST("/reports", r.Reports.Generate)
		secured.GET("/reports/:id", r.Reports.Status)
	}
}
