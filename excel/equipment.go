package excel

import "github.com/shopspring/decimal"

const (
	EquipmentSheetName   = "Nhập thiết bị"
	DepartmentSheetName  = "Khoa phòng"
	InstructionSheetName = "Hướng dẫn"

	templateNumberedRows  = 100
	templateValidatedRows = 1000
)

var EquipmentStatuses = []string{
	"Hoạt động",
	"Chờ sửa chữa",
	"Chờ bảo trì",
	"Chờ hiệu chuẩn/kiểm định",
	"Ngưng sử dụng",
	"Chưa có nhu cầu sử dụng",
}

// Classifications follow the A/B/C/D risk classes of medical devices.
var Classifications = []string{"A", "B", "C", "D"}

// Equipment import headers.
const (
	ColEquipmentCode = "Mã thiết bị"
	ColEquipmentName = "Tên thiết bị"
	ColDepartment    = "Khoa/phòng quản lý"
	ColStatus        = "Tình trạng hiện tại"
	ColLocation      = "Vị trí lắp đặt"
	ColClass         = "Phân loại theo NĐ98"
	ColManufactured  = "Năm sản xuất"
	ColOriginalPrice = "Giá gốc"
)

// EquipmentImportConfig is the bulk equipment import template. Departments
// are passed as reference entities with Code holding the department name.
func EquipmentImportConfig() TemplateConfig {
	return TemplateConfig{
		Entry: EntrySheet{
			Name:          EquipmentSheetName,
			NumberedRows:  templateNumberedRows,
			ValidatedRows: templateValidatedRows,
			FreezeHeader:  true,
			Columns: []Column{
				{Header: "STT", Width: 6, Sequence: true},
				{Header: ColEquipmentCode, Width: 18, Required: true},
				{Header: ColEquipmentName, Width: 32, Required: true},
				{Header: "Model", Width: 16},
				{Header: "Serial", Width: 16},
				{Header: "Hãng sản xuất", Width: 18},
				{Header: "Nơi sản xuất", Width: 16},
				{Header: ColManufactured, Width: 12, Rule: &ValidationRule{
					Kind:         RuleWhole,
					Operator:     OpBetween,
					Threshold:    decimal.NewFromInt(1900),
					Upper:        decimal.NewFromInt(2100),
					AllowBlank:   true,
					ErrorTitle:   "Năm sản xuất không hợp lệ",
					ErrorMessage: "Nhập năm gồm 4 chữ số, từ 1900 đến 2100.",
				}},
				{Header: "Ngày nhập", Width: 14},
				{Header: "Ngày đưa vào sử dụng", Width: 18},
				{Header: ColOriginalPrice, Width: 16, Rule: &ValidationRule{
					Kind:         RuleDecimal,
					Operator:     OpGreaterThanOrEqual,
					Threshold:    decimal.Zero,
					AllowBlank:   true,
					ErrorTitle:   "Giá gốc không hợp lệ",
					ErrorMessage: "Giá gốc phải là số không âm.",
				}},
				{Header: "Nguồn kinh phí", Width: 18},
				{Header: ColDepartment, Width: 24, Required: true, Rule: &ValidationRule{
					Kind:          RuleReferenceList,
					ErrorTitle:    "Khoa/phòng không hợp lệ",
					ErrorMessage:  "Chọn khoa/phòng trong danh sách của sheet \"" + DepartmentSheetName + "\".",
					PromptTitle:   "Khoa/phòng quản lý",
					PromptMessage: "Chọn từ danh sách thả xuống.",
				}},
				{Header: "Người sử dụng", Width: 18},
				{Header: ColStatus, Width: 22, Required: true, Rule: &ValidationRule{
					Kind:         RuleList,
					Choices:      EquipmentStatuses,
					ErrorTitle:   "Tình trạng không hợp lệ",
					ErrorMessage: "Chọn một tình trạng trong danh sách.",
				}},
				{Header: ColLocation, Width: 20, Required: true},
				{Header: ColClass, Width: 12, Rule: &ValidationRule{
					Kind:         RuleList,
					Choices:      Classifications,
					AllowBlank:   true,
					ErrorTitle:   "Phân loại không hợp lệ",
					ErrorMessage: "Phân loại chỉ nhận A, B, C hoặc D.",
				}},
				{Header: "Cấu hình thiết bị", Width: 28},
				{Header: "Phụ kiện kèm theo", Width: 24},
				{Header: "Ghi chú", Width: 24},
			},
		},
		Reference: &ReferenceSheet{
			Name:         DepartmentSheetName,
			FreezeHeader: true,
			Columns: []ReferenceColumn{
				{Header: "Khoa/phòng", Width: 32, Value: func(e ReferenceEntity) string { return e.Code }},
				{Header: "Ghi chú", Width: 32, Value: func(e ReferenceEntity) string { return e.DisplayName }},
			},
		},
		Instructions: &InstructionSheet{
			Name:  InstructionSheetName,
			Title: "HƯỚNG DẪN NHẬP THIẾT BỊ",
			Width: 110,
			Lines: []string{
				"1. Các cột có tiêu đề tô màu cam là bắt buộc.",
				"2. Mã thiết bị phải duy nhất trong toàn đơn vị.",
				"3. Khoa/phòng quản lý chọn từ danh sách thả xuống (lấy từ sheet \"" + DepartmentSheetName + "\").",
				"4. Tình trạng hiện tại chọn một trong: Hoạt động, Chờ sửa chữa, Chờ bảo trì, Chờ hiệu chuẩn/kiểm định, Ngưng sử dụng, Chưa có nhu cầu sử dụng.",
				"5. Ngày nhập và ngày đưa vào sử dụng ghi theo định dạng DD/MM/YYYY.",
				"6. Giá gốc nhập số, không kèm đơn vị tiền tệ.",
				"7. Không đổi tên, thêm hoặc xóa cột của sheet nhập liệu.",
			},
		},
	}
}
