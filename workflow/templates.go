package workflow

import (
	"context"

	"github.com/medequip/equipment_backend/excel"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/rpc"
	"github.com/medequip/equipment_backend/utils"
)

const (
	fnQuotaCategoryList = "dinh_muc_nhom_list"
	fnDepartmentList    = "departments_list"
)

func tenantArgs(ctx context.Context) map[string]any {
	args := map[string]any{}
	if tenantId, ok := utils.GetTenantIdFromContext(ctx); ok && tenantId > 0 {
		args["p_don_vi"] = tenantId
	}
	return args
}

func LoadQuotaCategories(ctx context.Context, caller rpc.Caller) ([]models.QuotaCategory, error) {
	return rpc.CallInto[[]models.QuotaCategory](ctx, caller, fnQuotaCategoryList, tenantArgs(ctx))
}

func LoadDepartments(ctx context.Context, caller rpc.Caller) ([]models.Department, error) {
	return rpc.CallInto[[]models.Department](ctx, caller, fnDepartmentList, nil)
}

func parentIds(categories []models.QuotaCategory) map[int64]bool {
	parents := make(map[int64]bool, len(categories))
	for _, c := range categories {
		if c.ParentId != nil {
			parents[*c.ParentId] = true
		}
	}
	return parents
}

// LeafCategories keeps the categories no other category points at as
// parent, in their original order.
func LeafCategories(categories []models.QuotaCategory) []models.QuotaCategory {
	parents := parentIds(categories)
	leaves := make([]models.QuotaCategory, 0, len(categories))
	for _, c := range categories {
		if !parents[c.ID] {
			leaves = append(leaves, c)
		}
	}
	return leaves
}

func CategoryEntities(categories []models.QuotaCategory) []excel.ReferenceEntity {
	return categoryEntities(categories, categories)
}

// categoryEntities maps selected to entities; parent labels and leaf flags
// resolve against all.
func categoryEntities(all, selected []models.QuotaCategory) []excel.ReferenceEntity {
	byId := make(map[int64]models.QuotaCategory, len(all))
	for _, c := range all {
		byId[c.ID] = c
	}
	parents := parentIds(all)

	entities := make([]excel.ReferenceEntity, 0, len(selected))
	for _, c := range selected {
		parentLabel := utils.DereferencePtr(c.ParentName, "")
		if parentLabel == "" && c.ParentId != nil {
			if p, ok := byId[*c.ParentId]; ok {
				parentLabel = p.MaNhom + " - " + p.TenNhom
			}
		}
		entities = append(entities, excel.ReferenceEntity{
			Code:           c.MaNhom,
			DisplayName:    c.TenNhom,
			Classification: utils.DereferencePtr(c.PhanLoai, ""),
			Unit:           utils.DereferencePtr(c.DonViTinh, ""),
			ParentLabel:    parentLabel,
			IsLeaf:         !parents[c.ID],
		})
	}
	return entities
}

func DepartmentEntities(departments []models.Department) []excel.ReferenceEntity {
	entities := make([]excel.ReferenceEntity, 0, len(departments))
	seen := make(map[string]bool, len(departments))
	for _, d := range departments {
		if d.Name == "" || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		entities = append(entities, excel.ReferenceEntity{Code: d.Name, IsLeaf: true})
	}
	return entities
}

// DeviceQuotaTemplate offers only leaf categories in the code drop-down.
func DeviceQuotaTemplate(ctx context.Context, caller rpc.Caller) ([]byte, error) {
	categories, err := LoadQuotaCategories(ctx, caller)
	if err != nil {
		return nil, err
	}
	return excel.Generate(categoryEntities(categories, LeafCategories(categories)), excel.DeviceQuotaConfig())
}

func EquipmentImportTemplate(ctx context.Context, caller rpc.Caller) ([]byte, error) {
	departments, err := LoadDepartments(ctx, caller)
	if err != nil {
		return nil, err
	}
	return excel.Generate(DepartmentEntities(departments), excel.EquipmentImportConfig())
}
