package irrigation_controller

import "github.com/vineetmishra237/smart-irrigation/internal/model/entities"

// VolumeEstimate is the water needed for one event under the soil policy and
// under the fixed baseline policy, both in m³.
type VolumeEstimate struct {
	Soil       entities.SoilType
	DepthMM    int
	RequiredM3 float64
	BaselineM3 float64
}

// ComputeVolume converts the soil's application depth over the field area into m³.
func ComputeVolume(soil entities.SoilType, areaM2 float64) VolumeEstimate {
	depth := soil.DepthMM()
	return VolumeEstimate{
		Soil:       soil,
		DepthMM:    depth,
		RequiredM3: areaM2 * float64(depth) / 1000,
		BaselineM3: areaM2 * float64(depth) * entities.BaselineMultiplier / 1000,
	}
}

// EfficiencyPct is the saving against the baseline in percent, 2 decimals.
// A zero baseline counts as fully efficient.
func (v VolumeEstimate) EfficiencyPct() float64 {
	if v.BaselineM3 <= 0 {
		return 100
	}
	return round2((1 - v.RequiredM3/v.BaselineM3) * 100)
}
