package handlers

import (
	"strconv"

	"loginflow/backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// AutoLogin replays the saved login sequence for the given URL's hostname.
// Blocks until the replay finishes so the caller gets the outcome directly.
func AutoLogin(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required,url"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	run, err := replays.AutoLogin(req.URL, "auto")
	if err != nil {
		response.InternalServerError(c, "auto login failed: "+err.Error())
		return
	}
	if run == nil {
		response.NotFound(c, "no login sequence recorded for this site")
		return
	}

	response.SuccessWithMessage(c, "auto login finished", run)
}

// TriggerReplay starts a replay for a site in the background and returns the
// run so the caller can poll its status.
func TriggerReplay(c *gin.Context) {
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

	run, err := replays.ReplayRecordAsync(record, "manual")
	if err != nil {
		response.InternalServerError(c, "failed to start replay: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "replay started", run)
}

func GetReplayRuns(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid site id")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := replays.Runs(uint(id), limit)
	if err != nil {
		response.InternalServerError(c, "failed to list replay runs")
		return
	}

	response.Success(c, runs)
}

func GetReplayRun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid run id")
		return
	}

	run, err := replays.Run(uint(id))
	if err != nil {
		response.InternalServerError(c, "failed to load replay run")
		return
	}
	if run == nil {
		response.NotFound(c, "replay run not found")
		return
	}

	response.Success(c, gin.H{
		"run":        run,
		"is_running": replays.IsRunning(run.ID),
	})
}

func CancelReplayRun(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid run id")
		return
	}

	if !replays.Cancel(uint(id)) {
		response.NotFound(c, "replay run is not running")
		return
	}

	response.SuccessWithMessage(c, "replay cancelled", nil)
}
