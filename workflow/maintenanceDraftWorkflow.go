package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/medequip/equipment_backend/draft"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/rpc"
)

const (
	fnMaintenanceTaskList   = "maintenance_tasks_list_with_equipment"
	fnMaintenanceTaskInsert = "maintenance_tasks_bulk_insert"
	fnMaintenanceTaskUpdate = "maintenance_task_update"
	fnMaintenanceTaskDelete = "maintenance_tasks_delete"
)

type MaintenanceDraft = draft.Engine[models.MaintenanceTask]

// MaintenanceBackend reconciles maintenance plan tasks. The scope is the
// plan id.
type MaintenanceBackend struct {
	caller rpc.Caller
}

func NewMaintenanceBackend(caller rpc.Caller) *MaintenanceBackend {
	return &MaintenanceBackend{caller: caller}
}

func planIdFromScope(scope string) (int64, error) {
	planId, err := strconv.ParseInt(scope, 10, 64)
	if err != nil || planId <= 0 {
		return 0, fmt.Errorf("invalid maintenance plan id %q", scope)
	}
	return planId, nil
}

func (b *MaintenanceBackend) Fetch(ctx context.Context, scope string) ([]draft.Record[models.MaintenanceTask], error) {
	planId, err := planIdFromScope(scope)
	if err != nil {
		return nil, err
	}
	rows, err := rpc.CallInto[[]models.MaintenanceTaskRow](ctx, b.caller, fnMaintenanceTaskList, map[string]any{
		"p_ke_hoach_id": planId,
	})
	if err != nil {
		return nil, err
	}

	records := make([]draft.Record[models.MaintenanceTask], 0, len(rows))
	for _, row := range rows {
		records = append(records, draft.Record[models.MaintenanceTask]{ID: row.ID, Data: row.MaintenanceTask})
	}
	return records, nil
}

func (b *MaintenanceBackend) Insert(ctx context.Context, scope string, tasks []models.MaintenanceTask) error {
	planId, err := planIdFromScope(scope)
	if err != nil {
		return err
	}
	payloads := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		t.KeHoachId = planId
		p, err := t.WritePayload()
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}
	_, err = b.caller.Call(ctx, fnMaintenanceTaskInsert, map[string]any{"p_tasks": payloads})
	return err
}

func (b *MaintenanceBackend) Update(ctx context.Context, id int64, task models.MaintenanceTask) error {
	p, err := task.WritePayload()
	if err != nil {
		return err
	}
	_, err = b.caller.Call(ctx, fnMaintenanceTaskUpdate, map[string]any{
		"p_id":   id,
		"p_task": p,
	})
	return err
}

func (b *MaintenanceBackend) Delete(ctx context.Context, ids []int64) error {
	_, err := b.caller.Call(ctx, fnMaintenanceTaskDelete, map[string]any{"p_ids": ids})
	return err
}
