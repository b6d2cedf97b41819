package models

// QuotaCategory is a device group of the quota catalogue. Groups form a tree
// through ParentId.
type QuotaCategory struct {
	ID         int64   `json:"id"`
	MaNhom     string  `json:"ma_nhom"`
	TenNhom    string  `json:"ten_nhom"`
	PhanLoai   *string `json:"phan_loai"`
	DonViTinh  *string `json:"don_vi_tinh"`
	ParentId   *int64  `json:"parent_id"`
	ParentName *string `json:"parent_name"`
	ThuTu      int     `json:"thu_tu"`
}

type Department struct {
	Name string `json:"name"`
	// Count of equipment managed by the department, when the function returns it.
	Count int `json:"count"`
}
