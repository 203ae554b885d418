// Package ruleset resolves raw heterogeneous zoning rows into a single
// authoritative ruleset with provenance and completeness accounting.
//
// The same semantic constraint may live under several alternate field
// paths in the source documents (a new explicit field, a legacy flat
// field, or an alternate resolved object). Resolution probes an explicit,
// ordered list of paths and takes the first usable value. Values are
// never invented: a facade-specific setback inherited from a
// non-directional rule is flagged as derived, and anything else left
// unresolved stays null.
package ruleset

// RuleType identifies how a setback minimum is expressed.
type RuleType string

const (
	// RuleFixed is a fixed metric minimum.
	RuleFixed RuleType = "fixed"
	// RuleHeightOverTwo requires a setback of half the building height.
	RuleHeightOverTwo RuleType = "h_over_2"
	// RuleHeightOverTwoMin requires half the building height with a
	// fixed floor value.
	RuleHeightOverTwoMin RuleType = "h_over_2_min"
	// RuleUnknown marks a rule whose type could not be interpreted.
	RuleUnknown RuleType = "unknown"
)

// FieldStatus records the provenance of a resolved field.
type FieldStatus string

const (
	// StatusExplicit means the value came from a direction-specific field.
	StatusExplicit FieldStatus = "explicit"
	// StatusDerived means the value was inherited from a matching
	// non-directional rule. Usable, but visibly provisional.
	StatusDerived FieldStatus = "derived"
	// StatusMissing means no candidate field produced a usable value.
	StatusMissing FieldStatus = "missing"
)

// SetbackRule is the resolved constraint for one facade direction.
type SetbackRule struct {
	Type      RuleType    `json:"type"`
	MinMeters *float64    `json:"min_meters"`
	Status    FieldStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
}

// Derived reports whether the value was inherited rather than explicit.
func (r SetbackRule) Derived() bool {
	return r.Status == StatusDerived
}

// Completeness accounts for the fields required before automatic
// placement is safe. OK is true iff MissingFields is empty.
type Completeness struct {
	OK            bool     `json:"ok"`
	MissingFields []string `json:"missing_fields"`
}

// Ruleset is the authoritative resolved constraint set for one parcel.
// It is computed once per raw zoning row and recomputed wholesale (never
// patched) when the input changes.
type Ruleset struct {
	Front SetbackRule `json:"front"`
	Side  SetbackRule `json:"side"`
	Rear  SetbackRule `json:"rear"`

	// BoundaryImplantation indicates whether building on the parcel
	// boundary is allowed; nil when the source does not say.
	BoundaryImplantation *bool `json:"boundary_implantation"`

	// Non-blocking metrics: missing values are surfaced via Notes
	// instead of failing completeness. A parcel without a height cap can
	// still have a building placed on it; it just cannot display every
	// metric.
	MaxCoverageRatio *float64 `json:"max_coverage_ratio"`
	MaxHeightMeters  *float64 `json:"max_height_meters"`

	ParkingPerDwelling *float64 `json:"parking_per_dwelling"`
	ParkingSpaceAreaM2 *float64 `json:"parking_space_area_m2"`

	Notes []string `json:"notes,omitempty"`

	Completeness Completeness `json:"completeness"`
}

// Names of required fields as they appear in Completeness.MissingFields.
const (
	FieldFrontSetback         = "front_setback"
	FieldSideSetback          = "side_setback"
	FieldRearSetback          = "rear_setback"
	FieldBoundaryImplantation = "boundary_implantation"
	FieldParkingRatio         = "parking_ratio"
)
