package models

import (
	"encoding/json"
)

type WorkType string

const (
	WorkMaintenance WorkType = "Bảo trì"
	WorkCalibration WorkType = "Hiệu chuẩn"
	WorkInspection  WorkType = "Kiểm định"
)

// MaintenanceTask is one row of a maintenance plan: which equipment, what
// kind of work, and in which months it is scheduled.
type MaintenanceTask struct {
	KeHoachId     int64    `json:"ke_hoach_id"`
	ThietBiId     *int64   `json:"thiet_bi_id"`
	LoaiCongViec  WorkType `json:"loai_cong_viec" validate:"required,oneof='Bảo trì' 'Hiệu chuẩn' 'Kiểm định'"`
	DiemHieuChuan *string  `json:"diem_hieu_chuan"`
	DonViThucHien *string  `json:"don_vi_thuc_hien"`
	Thang1        bool     `json:"thang_1"`
	Thang2        bool     `json:"thang_2"`
	Thang3        bool     `json:"thang_3"`
	Thang4        bool     `json:"thang_4"`
	Thang5        bool     `json:"thang_5"`
	Thang6        bool     `json:"thang_6"`
	Thang7        bool     `json:"thang_7"`
	Thang8        bool     `json:"thang_8"`
	Thang9        bool     `json:"thang_9"`
	Thang10       bool     `json:"thang_10"`
	Thang11       bool     `json:"thang_11"`
	Thang12       bool     `json:"thang_12"`
	GhiChu        *string  `json:"ghi_chu"`

	// Joined from the equipment table by the list function; never written.
	MaThietBi       string `json:"ma_thiet_bi,omitempty"`
	TenThietBi      string `json:"ten_thiet_bi,omitempty"`
	KhoaPhongQuanLy string `json:"khoa_phong_quan_ly,omitempty"`
}

var maintenanceDisplayFields = []string{"ma_thiet_bi", "ten_thiet_bi", "khoa_phong_quan_ly"}

// MaintenanceTaskRow is the shape returned by the list function.
type MaintenanceTaskRow struct {
	ID int64 `json:"id"`
	MaintenanceTask
}

// ScheduledMonths lists the months (1-12) the task is planned for.
func (t MaintenanceTask) ScheduledMonths() []int {
	flags := []bool{t.Thang1, t.Thang2, t.Thang3, t.Thang4, t.Thang5, t.Thang6,
		t.Thang7, t.Thang8, t.Thang9, t.Thang10, t.Thang11, t.Thang12}
	var months []int
	for i, on := range flags {
		if on {
			months = append(months, i+1)
		}
	}
	return months
}

// WritePayload is the task as the insert and update functions expect it,
// without the joined display fields.
func (t MaintenanceTask) WritePayload() (map[string]any, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{}
	if err := json.Unmarshal(b, &payload); err != nil {
		return nil, err
	}
	for _, f := range maintenanceDisplayFields {
		delete(payload, f)
	}
	return payload, nil
}
