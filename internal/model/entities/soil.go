package entities

// SoilType is the soil classification code submitted with a decision request.
type SoilType int

const (
	SoilSandy SoilType = 1
	SoilLoamy SoilType = 2
	SoilClay  SoilType = 3
)

// DefaultDepthMM is the application depth used for codes outside the table.
const DefaultDepthMM = 20

// BaselineMultiplier scales the smart depth into the fixed baseline policy depth.
const BaselineMultiplier = 1.5

// DepthMM returns the application depth in millimetres for the soil code.
// Unknown codes fall back to DefaultDepthMM.
func (s SoilType) DepthMM() int {
	switch s {
	case SoilSandy:
		return 25
	case SoilLoamy:
		return 20
	case SoilClay:
		return 15
	default:
		return DefaultDepthMM
	}
}

// Known reports whether the code is one of the tabulated soil types.
func (s SoilType) Known() bool {
	switch s {
	case SoilSandy, SoilLoamy, SoilClay:
		return true
	default:
		return false
	}
}

func (s SoilType) String() string {
	switch s {
	case SoilSandy:
		return "Sandy"
	case SoilLoamy:
		return "Loamy"
	case SoilClay:
		return "Clay"
	default:
		return "Unknown"
	}
}

// DepthMM is the table lookup over raw integer codes.
func DepthMM(code int) int { return SoilType(code).DepthMM() }
