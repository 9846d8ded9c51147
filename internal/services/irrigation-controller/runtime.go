package irrigation_controller

import (
	"fmt"
	"math"

	"go.uber.org/zap"
)

// RuntimeSeconds is how long the pump must run to deliver volumeM3 at rateM3s.
// The pipeline clamps rates first, so a non-positive rate here is a bug.
func RuntimeSeconds(volumeM3, rateM3s float64) (float64, error) {
	if !(rateM3s > 0) {
		zap.L().DPanic("runtime: non-positive discharge rate reached runtime calculation",
			zap.Float64("rate", rateM3s), zap.Float64("volume_m3", volumeM3))
		return 0, invariantError("discharge rate %v must be positive", rateM3s)
	}
	return volumeM3 / rateM3s, nil
}

// FormatDuration renders seconds as "M min, S sec", or "S sec" under a minute.
// Minutes come from the unrounded value and the remainder rounds half to even,
// so 59.6 renders as "60 sec". Minutes stay in float64 so very long runtimes
// cannot overflow an integer.
func FormatDuration(seconds float64) (string, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "", formatError(seconds)
	}
	minutes := math.Floor(seconds / 60)
	remaining := math.RoundToEven(math.Mod(seconds, 60))
	if minutes > 0 {
		return fmt.Sprintf("%.0f min, %.0f sec", minutes, remaining), nil
	}
	return fmt.Sprintf("%.0f sec", remaining), nil
}
