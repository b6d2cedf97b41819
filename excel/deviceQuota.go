package excel

import "github.com/shopspring/decimal"

const (
	DeviceQuotaSheetName = "Định mức"
	CategorySheetName    = "Danh mục nhóm"
)

// Device quota headers.
const (
	ColCategoryCode   = "Mã nhóm thiết bị"
	ColCategoryName   = "Tên nhóm thiết bị"
	ColCategoryClass  = "Phân loại"
	ColCategoryUnit   = "Đơn vị tính"
	ColMaxQuantity    = "Số lượng định mức"
	ColMinQuantity    = "Số lượng tối thiểu"
	ColQuotaReference = "Căn cứ / Ghi chú"
)

// DeviceQuotaConfig is the device quota import template. Only leaf
// categories may be passed as reference entities.
func DeviceQuotaConfig() TemplateConfig {
	return TemplateConfig{
		Entry: EntrySheet{
			Name:          DeviceQuotaSheetName,
			NumberedRows:  templateNumberedRows,
			ValidatedRows: templateValidatedRows,
			FreezeHeader:  true,
			Columns: []Column{
				{Header: "STT", Width: 6, Sequence: true},
				{Header: ColCategoryCode, Width: 18, Required: true, Rule: &ValidationRule{
					Kind:          RuleReferenceList,
					ErrorTitle:    "Mã nhóm không hợp lệ",
					ErrorMessage:  "Chọn mã nhóm thiết bị trong sheet \"" + CategorySheetName + "\".",
					PromptTitle:   "Mã nhóm thiết bị",
					PromptMessage: "Chọn từ danh sách thả xuống. Tên, phân loại và đơn vị tính tự điền.",
				}},
				{Header: ColCategoryName, Width: 36, Lookup: &Lookup{KeyColumn: ColCategoryCode, ReturnIndex: 2}},
				{Header: ColCategoryClass, Width: 12, Lookup: &Lookup{KeyColumn: ColCategoryCode, ReturnIndex: 3}},
				{Header: ColCategoryUnit, Width: 12, Lookup: &Lookup{KeyColumn: ColCategoryCode, ReturnIndex: 4}},
				{Header: ColMaxQuantity, Width: 16, Required: true, Rule: &ValidationRule{
					Kind:         RuleWhole,
					Operator:     OpGreaterThan,
					Threshold:    decimal.Zero,
					ErrorTitle:   "Số lượng định mức không hợp lệ",
					ErrorMessage: "Số lượng định mức phải là số nguyên lớn hơn 0.",
				}},
				{Header: ColMinQuantity, Width: 16, Rule: &ValidationRule{
					Kind:         RuleWhole,
					Operator:     OpBetween,
					Threshold:    decimal.Zero,
					UpperColumn:  ColMaxQuantity,
					AllowBlank:   true,
					ErrorTitle:   "Số lượng tối thiểu không hợp lệ",
					ErrorMessage: "Số lượng tối thiểu là số nguyên từ 0 đến số lượng định mức.",
				}},
				{Header: ColQuotaReference, Width: 36},
			},
		},
		Reference: &ReferenceSheet{
			Name:         CategorySheetName,
			FreezeHeader: true,
			Columns: []ReferenceColumn{
				{Header: "Mã nhóm", Width: 16, Value: func(e ReferenceEntity) string { return e.Code }},
				{Header: "Tên nhóm", Width: 40, Value: func(e ReferenceEntity) string { return e.DisplayName }},
				{Header: "Phân loại", Width: 12, Value: func(e ReferenceEntity) string { return e.Classification }},
				{Header: "Đơn vị tính", Width: 12, Value: func(e ReferenceEntity) string { return e.Unit }},
				{Header: "Nhóm cha", Width: 32, Value: func(e ReferenceEntity) string { return e.ParentLabel }},
			},
		},
		Instructions: &InstructionSheet{
			Name:  InstructionSheetName,
			Title: "HƯỚNG DẪN NHẬP ĐỊNH MỨC THIẾT BỊ",
			Width: 110,
			Lines: []string{
				"Căn cứ: Thông tư 08/2019/TT-BYT về tiêu chuẩn, định mức sử dụng thiết bị y tế.",
				"1. Chọn mã nhóm thiết bị từ danh sách thả xuống; chỉ nhóm cấp cuối được phép chọn.",
				"2. Tên nhóm, phân loại và đơn vị tính tự điền theo mã nhóm, không sửa các cột này.",
				"3. Số lượng định mức là số nguyên lớn hơn 0.",
				"4. Số lượng tối thiểu có thể để trống; nếu nhập phải từ 0 đến số lượng định mức.",
				"5. Mỗi mã nhóm chỉ khai báo một dòng trong một quyết định định mức.",
			},
		},
	}
}
