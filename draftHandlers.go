package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/draft"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/utils"
	"github.com/medequip/equipment_backend/workflow"
)

type draftView struct {
	PlanId     int64                                   `json:"plan_id"`
	State      string                                  `json:"state"`
	Restored   bool                                    `json:"restored"`
	HasChanges bool                                    `json:"has_changes"`
	Tasks      []draft.Record[models.MaintenanceTask] `json:"tasks"`
	Pending    pendingChanges                          `json:"pending"`
}

type pendingChanges struct {
	Inserts int `json:"inserts"`
	Updates int `json:"updates"`
	Deletes int `json:"deletes"`
}

type replaceDraftRequest struct {
	Tasks []draft.Record[models.MaintenanceTask] `json:"tasks"`
}

type addTasksRequest struct {
	Tasks []models.MaintenanceTask `json:"tasks" binding:"required,min=1"`
}

type removeTasksRequest struct {
	Ids []int64 `json:"ids" binding:"required,min=1"`
}

func newDraftView(planId int64, engine *workflow.MaintenanceDraft, restored bool) draftView {
	plan := engine.Plan()
	return draftView{
		PlanId:     planId,
		State:      engine.State().String(),
		Restored:   restored,
		HasChanges: engine.HasChanges(),
		Tasks:      engine.Working(),
		Pending: pendingChanges{
			Inserts: len(plan.Inserts),
			Updates: len(plan.Updates),
			Deletes: len(plan.Deletes),
		},
	}
}

// draftTarget resolves the user's engine for the plan in the path.
func (a *App) draftTarget(c *gin.Context) (*workflow.MaintenanceDraft, string, int64, bool) {
	planId, err := strconv.ParseInt(c.Param("planId"), 10, 64)
	if err != nil || planId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return nil, "", 0, false
	}
	username, _ := utils.GetUsernameFromContext(c.Request.Context())
	return a.drafts.Engine(username, planId), username, planId, true
}

// ensureLoaded fetches the plan when the engine holds nothing or another
// scope, e.g. after it was evicted or the instance restarted.
func ensureLoaded(ctx context.Context, engine *workflow.MaintenanceDraft, planId int64) (bool, error) {
	scope := draft.ScopeFromInt(planId)
	if engine.State() != draft.StateEmpty && engine.Scope() == scope {
		return false, nil
	}
	res, err := engine.Fetch(ctx, scope)
	return res.Restored, err
}

func validateTasks(tasks []models.MaintenanceTask) map[string]string {
	for _, t := range tasks {
		if err := utils.ValidateStruct(t); err != nil {
			return utils.ProcessValidationErrors(err)
		}
	}
	return nil
}

func draftErrorResponse(c *gin.Context, err error) {
	_ = c.Error(err)
	var saveErr *draft.SaveError
	var fetchErr *draft.FetchError
	switch {
	case errors.Is(err, workflow.ErrSaveInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, draft.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, draft.ErrInvalidRecordId):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, draft.ErrNotLoaded), errors.Is(err, draft.ErrScopeRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &saveErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     err.Error(),
			"phase":     saveErr.Phase,
			"record_id": saveErr.RecordID,
		})
	case errors.As(err, &fetchErr):
		rpcErrorResponse(c, fetchErr.Err)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (a *App) fetchDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, _, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		res, err := engine.Fetch(c.Request.Context(), draft.ScopeFromInt(planId))
		if err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, newDraftView(planId, engine, res.Restored))
	}
}

func (a *App) replaceDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, _, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		var req replaceDraftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		payloads := make([]models.MaintenanceTask, 0, len(req.Tasks))
		for _, r := range req.Tasks {
			payloads = append(payloads, r.Data)
		}
		if errs := validateTasks(payloads); errs != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task", "fields": errs})
			return
		}

		restored, err := ensureLoaded(c.Request.Context(), engine, planId)
		if err == nil {
			err = engine.Mutate(c.Request.Context(), req.Tasks)
		}
		if err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, newDraftView(planId, engine, restored))
	}
}

func (a *App) addDraftTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, _, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		var req addTasksRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tasks are required"})
			return
		}
		if errs := validateTasks(req.Tasks); errs != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task", "fields": errs})
			return
		}

		if _, err := ensureLoaded(c.Request.Context(), engine, planId); err != nil {
			draftErrorResponse(c, err)
			return
		}
		added, err := engine.Add(c.Request.Context(), req.Tasks...)
		if err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"added": added,
			"draft": newDraftView(planId, engine, false),
		})
	}
}

func (a *App) updateDraftTaskHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, _, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		taskId, err := strconv.ParseInt(c.Param("taskId"), 10, 64)
		if err != nil || taskId == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
			return
		}
		var task models.MaintenanceTask
		if err := c.ShouldBindJSON(&task); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if errs := validateTasks([]models.MaintenanceTask{task}); errs != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task", "fields": errs})
			return
		}

		if _, err := ensureLoaded(c.Request.Context(), engine, planId); err != nil {
			draftErrorResponse(c, err)
			return
		}
		err = engine.Update(c.Request.Context(), taskId, func(current *models.MaintenanceTask) {
			// display fields come from the equipment join, not from the client
			task.MaThietBi = current.MaThietBi
			task.TenThietBi = current.TenThietBi
			task.KhoaPhongQuanLy = current.KhoaPhongQuanLy
			*current = task
		})
		if err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, newDraftView(planId, engine, false))
	}
}

func (a *App) removeDraftTasksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, _, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		var req removeTasksRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
			return
		}

		if _, err := ensureLoaded(c.Request.Context(), engine, planId); err != nil {
			draftErrorResponse(c, err)
			return
		}
		if err := engine.Remove(c.Request.Context(), req.Ids...); err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, newDraftView(planId, engine, false))
	}
}

func (a *App) cancelDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, _, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		if _, err := ensureLoaded(c.Request.Context(), engine, planId); err != nil {
			draftErrorResponse(c, err)
			return
		}
		if err := engine.Cancel(c.Request.Context()); err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, newDraftView(planId, engine, false))
	}
}

func (a *App) saveDraftHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		engine, username, planId, ok := a.draftTarget(c)
		if !ok {
			return
		}
		if _, err := ensureLoaded(c.Request.Context(), engine, planId); err != nil {
			draftErrorResponse(c, err)
			return
		}
		result, err := a.drafts.Save(c.Request.Context(), username, planId)
		var reloadErr *draft.ReloadError
		if errors.As(err, &reloadErr) {
			// the changes are on the server; only the read-back failed
			_ = c.Error(err)
			c.JSON(http.StatusOK, gin.H{
				"inserted":      result.Inserted,
				"updated":       result.Updated,
				"deleted":       result.Deleted,
				"reload_failed": true,
				"warning":       err.Error(),
				"draft":         newDraftView(planId, engine, false),
			})
			return
		}
		if err != nil {
			draftErrorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"inserted": result.Inserted,
			"updated":  result.Updated,
			"deleted":  result.Deleted,
			"draft":    newDraftView(planId, engine, false),
		})
	}
}
