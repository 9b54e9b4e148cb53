package handlers

import (
	"strconv"

	"loginflow/backend/internal/registry"
	"loginflow/backend/internal/services"
	"loginflow/backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

func GetSites(c *gin.Context) {
	records, err := sites.List()
	if err != nil {
		response.InternalServerError(c, "failed to list sites")
		return
	}

	// The list view shows recorded credentials for quick identification.
	type siteView struct {
		ID             uint   `json:"id"`
		Hostname       string `json:"hostname"`
		URL            string `json:"url"`
		RecordedAt     string `json:"recorded_at"`
		Username       string `json:"username"`
		ActionCount    int    `json:"action_count"`
		CronExpression string `json:"cron_expression"`
	}

	views := make([]siteView, 0, len(records))
	for _, record := range records {
		actions, _ := record.GetActions()
		views = append(views, siteView{
			ID:             record.ID,
			Hostname:       record.Hostname,
			URL:            record.URL,
			RecordedAt:     record.RecordedAt.Format("2006-01-02 15:04:05"),
			Username:       record.Username,
			ActionCount:    len(actions),
			CronExpression: record.CronExpression,
		})
	}

	response.Success(c, views)
}

func GetSite(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid site id")
		return
	}

	record, err := sites.FindByID(uint(id))
	if err != nil {
		response.InternalServerError(c, "failed to load site")
		return
	}
	if record == nil {
		response.NotFound(c, "site not found")
		return
	}

	response.Success(c, record)
}

// LookupSite answers whether a login sequence exists for the given URL's
// hostname. Used before offering an automatic login.
func LookupSite(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		response.BadRequest(c, "url is required")
		return
	}

	hostname, err := registry.HostnameFromURL(rawURL)
	if err != nil {
		response.BadRequest(c, "cannot parse hostname from url")
		return
	}

	record, err := sites.FindByHostname(hostname)
	if err != nil {
		response.InternalServerError(c, "failed to look up site")
		return
	}

	if record == nil {
		response.Success(c, gin.H{"hostname": hostname, "exists": false})
		return
	}

	actions, _ := record.GetActions()
	response.Success(c, gin.H{
		"hostname":     hostname,
		"exists":       true,
		"id":           record.ID,
		"username":     record.Username,
		"action_count": len(actions),
	})
}

func DeleteSite(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid site id")
		return
	}

	record, err := sites.FindByID(uint(id))
	if err != nil {
		response.InternalServerError(c, "failed to load site")
		return
	}
	if record == nil {
		response.NotFound(c, "site not found")
		return
	}

	if err := sites.DeleteByID(uint(id)); err != nil {
		response.InternalServerError(c, "failed to delete site")
		return
	}

	if services.GlobalScheduler != nil {
		services.GlobalScheduler.RemoveSchedule(uint(id))
	}

	response.SuccessWithMessage(c, "site deleted", nil)
}

// DeleteSiteByHostname removes the record keyed by hostname, the way the
// forget-this-site action works from the recording UI.
func DeleteSiteByHostname(c *gin.Context) {
	hostname := c.Query("hostname")
	if hostname == "" {
		response.BadRequest(c, "hostname is required")
		return
	}

	record, err := sites.FindByHostname(hostname)
	if err != nil {
		response.InternalServerError(c, "failed to load site")
		return
	}
	if record == nil {
		response.NotFound(c, "site not found")
		return
	}

	if err := sites.DeleteByHostname(hostname); err != nil {
		response.InternalServerError(c, "failed to delete site")
		return
	}

	if services.GlobalScheduler != nil {
		services.GlobalScheduler.RemoveSchedule(record.ID)
	}

	response.SuccessWithMessage(c, "site deleted", nil)
}

// UpdateSiteSchedule sets or clears the cron expression that drives
// keep-alive logins for a site.
func UpdateSiteSchedule(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid site id")
		return
	}

	var req struct {
		CronExpression string `json:"cron_expression"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if req.CronExpression != "" {
		if _, err := cron.ParseStandard(req.CronExpression); err != nil {
			response.BadRequest(c, "invalid cron expression: "+err.Error())
			return
		}
	}

	record, err := sites.FindByID(uint(id))
	if err != nil {
		response.InternalServerError(c, "failed to load site")
		return
	}
	if record == nil {
		response.NotFound(c, "site not found")
		return
	}

	if err := sites.UpdateCronExpression(uint(id), req.CronExpression); err != nil {
		response.InternalServerError(c, "failed to update schedule")
		return
	}

	if services.GlobalScheduler != nil {
		if err := services.GlobalScheduler.AddSchedule(uint(id), req.CronExpression); err != nil {
			response.InternalServerError(c, "failed to apply schedule")
			return
		}
	}

	response.SuccessWithMessage(c, "schedule updated", nil)
}
