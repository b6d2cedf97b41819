package rpc

import (
	"sort"
	"strings"
)

// Functions callable through the proxy and the internal workflows. Anything
// else is refused before a request leaves the process.
var defaultFunctions = []string{
	// equipment
	"equipment_list",
	"equipment_list_enhanced",
	"equipment_get",
	"equipment_get_by_code",
	"equipment_create",
	"equipment_update",
	"equipment_delete",
	"equipment_bulk_import",
	"equipment_count",
	"equipment_history_list",
	"equipment_attachments_list",
	"equipment_attachment_create",
	"equipment_attachment_delete",

	// repair requests
	"repair_request_list",
	"repair_request_create",
	"repair_request_update",
	"repair_request_approve",
	"repair_request_complete",
	"repair_request_delete",

	// transfers
	"transfer_request_list",
	"transfer_request_create",
	"transfer_request_update",
	"transfer_request_update_status",
	"transfer_request_complete",
	"transfer_request_delete",
	"transfer_history_list",

	// maintenance
	"maintenance_plan_list",
	"maintenance_plan_create",
	"maintenance_plan_update",
	"maintenance_plan_delete",
	"maintenance_plan_approve",
	"maintenance_plan_reject",
	"maintenance_tasks_list_with_equipment",
	"maintenance_tasks_bulk_insert",
	"maintenance_task_update",
	"maintenance_tasks_delete",
	"maintenance_task_complete",

	// device quota
	"dinh_muc_nhom_list",
	"dinh_muc_nhom_upsert",
	"dinh_muc_nhom_delete",
	"dinh_muc_nhom_bulk_import",
	"dinh_muc_quyet_dinh_list",
	"dinh_muc_quyet_dinh_create",
	"dinh_muc_quyet_dinh_update",
	"dinh_muc_chi_tiet_list",
	"dinh_muc_chi_tiet_bulk_import",
	"dinh_muc_compliance_summary",

	// reference data and users
	"departments_list",
	"don_vi_list",
	"user_membership_list",
	"header_notifications_summary",
	"usage_log_list",
	"usage_session_start",
	"usage_session_end",
}

type AllowList struct {
	names map[string]struct{}
}

func NewAllowList(extra ...string) *AllowList {
	a := &AllowList{names: make(map[string]struct{}, len(defaultFunctions)+len(extra))}
	for _, fn := range defaultFunctions {
		a.names[fn] = struct{}{}
	}
	for _, fn := range extra {
		if fn = strings.TrimSpace(fn); fn != "" {
			a.names[fn] = struct{}{}
		}
	}
	return a
}

func (a *AllowList) Allowed(function string) bool {
	if a == nil {
		return false
	}
	_, ok := a.names[function]
	return ok
}

func (a *AllowList) Names() []string {
	names := make([]string, 0, len(a.names))
	for fn := range a.names {
		names = append(names, fn)
	}
	sort.Strings(names)
	return names
}
