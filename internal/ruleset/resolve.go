package ruleset

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Probe chains, evaluated in order: the new explicit field first, then
// the legacy flat field, then the alternate resolved object. The lists
// are package values so the priority itself can be inspected and tested.
var (
	FrontSetbackPaths = []string{"rules.front.min_m", "recul_facade_avant", "resolved.front.min"}
	SideSetbackPaths  = []string{"rules.side.min_m", "recul_lateral", "resolved.side.min"}
	RearSetbackPaths  = []string{"rules.rear.min_m", "recul_arriere", "resolved.rear.min"}

	// Non-directional fallbacks a facade-specific setback may inherit:
	// road setback -> front, lateral limits -> sides, rear limit -> rear.
	RoadSetbackPaths  = []string{"rules.road.min_m", "recul_voirie", "resolved.road.min"}
	LateralLimitPaths = []string{"rules.lateral_limits.min_m", "limites_laterales", "resolved.lateral.min"}
	RearLimitPaths    = []string{"rules.rear_limit.min_m", "fond_de_parcelle", "resolved.rear_limit.min"}

	FrontTypePaths = []string{"rules.front.type", "recul_facade_avant_type", "resolved.front.rule_type"}
	SideTypePaths  = []string{"rules.side.type", "recul_lateral_type", "resolved.side.rule_type"}
	RearTypePaths  = []string{"rules.rear.type", "recul_arriere_type", "resolved.rear.rule_type"}

	BoundaryPaths = []string{"rules.boundary_implantation.allowed", "implantation_en_limite", "resolved.boundary.allowed"}
	CoveragePaths = []string{"rules.coverage.max_ratio", "ces", "resolved.coverage.max"}
	HeightPaths   = []string{"rules.height.max_m", "hauteur_max", "resolved.height.max"}

	ParkingRatioPaths = []string{"rules.parking.ratio_per_dwelling", "stationnement_ratio", "resolved.parking.ratio"}
	ParkingAreaPaths  = []string{"rules.parking.space_area_m2", "stationnement_surface_place", "resolved.parking.space_area"}
)

// numberPattern matches the first decimal number in free-form rule text,
// accepting both dot and comma decimal separators ("5,50 m").
var numberPattern = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)

// Resolve turns a raw zoning row into a Ruleset. It is a pure function
// and never fails: malformed input degrades to null fields, never to a
// guessed default for blocking fields.
func Resolve(raw json.RawMessage) Ruleset {
	if !gjson.ValidBytes(raw) {
		raw = []byte(`{}`)
	}
	row := gjson.ParseBytes(raw)

	var rs Ruleset
	rs.Front = resolveSetback(row, FrontSetbackPaths, FrontTypePaths, RoadSetbackPaths, "road setback")
	rs.Side = resolveSetback(row, SideSetbackPaths, SideTypePaths, LateralLimitPaths, "lateral limits")
	rs.Rear = resolveSetback(row, RearSetbackPaths, RearTypePaths, RearLimitPaths, "rear limit")

	rs.BoundaryImplantation = probeBool(row, BoundaryPaths)
	rs.MaxCoverageRatio = probeRatio(row, CoveragePaths)
	rs.MaxHeightMeters = probeNumber(row, HeightPaths)
	rs.ParkingPerDwelling = probeNumber(row, ParkingRatioPaths)
	rs.ParkingSpaceAreaM2 = probeNumber(row, ParkingAreaPaths)

	if rs.MaxCoverageRatio == nil {
		rs.Notes = append(rs.Notes, "max coverage ratio not specified")
	}
	if rs.MaxHeightMeters == nil {
		rs.Notes = append(rs.Notes, "max height not specified")
	}

	rs.Completeness = computeCompleteness(rs)
	return rs
}

// computeCompleteness checks the fixed required-field list: the three
// directional setbacks, the boundary-implantation flag, and at least one
// parking ratio. Height and coverage are deliberately excluded; their
// absence prevents displaying every metric, not safely placing a building.
func computeCompleteness(rs Ruleset) Completeness {
	missing := []string{}
	if rs.Front.MinMeters == nil {
		missing = append(missing, FieldFrontSetback)
	}
	if rs.Side.MinMeters == nil {
		missing = append(missing, FieldSideSetback)
	}
	if rs.Rear.MinMeters == nil {
		missing = append(missing, FieldRearSetback)
	}
	if rs.BoundaryImplantation == nil {
		missing = append(missing, FieldBoundaryImplantation)
	}
	if rs.ParkingPerDwelling == nil {
		missing = append(missing, FieldParkingRatio)
	}
	return Completeness{
		OK:            len(missing) == 0,
		MissingFields: missing,
	}
}

// resolveSetback resolves one facade direction. Explicit candidates win;
// otherwise the matching non-directional rule is inherited and flagged
// derived with a note naming its origin.
func resolveSetback(row gjson.Result, explicitPaths, typePaths, inheritPaths []string, inheritName string) SetbackRule {
	ruleType := resolveRuleType(row, typePaths)

	if v := probeNumber(row, explicitPaths); v != nil {
		if ruleType == RuleUnknown {
			ruleType = RuleFixed
		}
		return SetbackRule{Type: ruleType, MinMeters: v, Status: StatusExplicit}
	}

	if v := probeNumber(row, inheritPaths); v != nil {
		if ruleType == RuleUnknown {
			ruleType = RuleFixed
		}
		return SetbackRule{
			Type:      ruleType,
			MinMeters: v,
			Status:    StatusDerived,
			Note:      fmt.Sprintf("inherited from %s rule", inheritName),
		}
	}

	return SetbackRule{Type: ruleType, Status: StatusMissing}
}

// resolveRuleType interprets the rule-type discriminator when present.
// Returns RuleUnknown when no candidate field has a recognizable value.
func resolveRuleType(row gjson.Result, paths []string) RuleType {
	for _, path := range paths {
		res := row.Get(path)
		if !res.Exists() || res.Type != gjson.String {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(res.String())) {
		case "fixed", "fixe":
			return RuleFixed
		case "h2", "h_over_2", "h_sur_2":
			return RuleHeightOverTwo
		case "h2_min", "h_over_2_min", "h_sur_2_min":
			return RuleHeightOverTwoMin
		}
	}
	return RuleUnknown
}

// probeNumber returns the first finite number found along the candidate
// paths. String values are normalized for locale quirks (comma decimals,
// embedded unit text) before parsing.
func probeNumber(row gjson.Result, paths []string) *float64 {
	for _, path := range paths {
		res := row.Get(path)
		if !res.Exists() {
			continue
		}
		if v := parseNumber(res); v != nil {
			return v
		}
	}
	return nil
}

// probeRatio resolves a coverage-style ratio. Source rows express it
// either as a fraction (0.4) or a percentage (40); percentages are
// normalized to fractions.
func probeRatio(row gjson.Result, paths []string) *float64 {
	v := probeNumber(row, paths)
	if v == nil {
		return nil
	}
	ratio := *v
	if ratio > 1 && ratio <= 100 {
		ratio = ratio / 100
	}
	if ratio < 0 || ratio > 1 {
		return nil
	}
	return &ratio
}

// probeBool returns the first interpretable boolean along the candidate
// paths. Legacy rows carry "oui"/"non" strings.
func probeBool(row gjson.Result, paths []string) *bool {
	for _, path := range paths {
		res := row.Get(path)
		if !res.Exists() {
			continue
		}
		switch res.Type {
		case gjson.True:
			v := true
			return &v
		case gjson.False:
			v := false
			return &v
		case gjson.String:
			switch strings.ToLower(strings.TrimSpace(res.String())) {
			case "true", "oui", "yes", "autorisee", "autorisée":
				v := true
				return &v
			case "false", "non", "no", "interdite":
				v := false
				return &v
			}
		}
	}
	return nil
}

// parseNumber extracts a finite float from a gjson value, or nil.
func parseNumber(res gjson.Result) *float64 {
	switch res.Type {
	case gjson.Number:
		v := res.Num
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	case gjson.String:
		match := numberPattern.FindString(res.String())
		if match == "" {
			return nil
		}
		match = strings.ReplaceAll(match, ",", ".")
		v, err := strconv.ParseFloat(match, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return nil
}
