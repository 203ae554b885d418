package implant

// FloorHeightM is the assumed story height used to compare floor counts
// against a maximum building height.
const FloorHeightM = 3.0

// BuildingSpec is the user-controlled description of one building.
type BuildingSpec struct {
	Shape           Shape   `json:"shape" validate:"required,oneof=square bar"`
	FootprintAreaM2 float64 `json:"footprint_area_m2" validate:"required,gt=0"`
	Floors          int     `json:"floors" validate:"required,min=1,max=20"`
	OrientationDeg  float64 `json:"orientation_deg" validate:"gte=0,lt=360"`
	FacadeMode      string  `json:"facade_mode" validate:"omitempty,oneof=auto facade"`
}

// ProjectSpec is the user-controlled project description. Bounds are
// enforced with validator tags when the request enters through the API.
type ProjectSpec struct {
	BuildingCount     int            `json:"building_count" validate:"required,min=1,max=10"`
	DwellingCount     int            `json:"dwelling_count" validate:"required,min=1,max=500"`
	AvgDwellingAreaM2 float64        `json:"avg_dwelling_area_m2" validate:"required,gt=0"`
	Buildings         []BuildingSpec `json:"buildings" validate:"required,min=1,max=10,dive"`
}

// GrossFloorAreaM2 approximates the project's gross floor area as
// footprint area times floor count, summed over placed footprints. This
// is the figure handed to the financial module.
func GrossFloorAreaM2(spec ProjectSpec, footprints []Footprint) float64 {
	total := 0.0
	for i, fp := range footprints {
		floors := 1
		if i < len(spec.Buildings) {
			floors = spec.Buildings[i].Floors
		}
		total += fp.AreaM2 * float64(floors)
	}
	return total
}
