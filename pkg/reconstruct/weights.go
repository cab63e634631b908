package reconstruct

import "math"

// WeightFunc gives the weight of a crystal with energy inside a cluster of
// total energy when averaging positions.
type WeightFunc func(energy float64, total float64) float64

const DefaultLogWeightW0 = 4.0

func LinearWeight(energy float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	return energy / total
}

// LogWeight suppresses crystals below exp(-w0) of the cluster energy.
func LogWeight(w0 float64) WeightFunc {
	return func(energy float64, total float64) float64 {
		if energy <= 0 || total <= 0 {
			return 0
		}
		return math.Max(0, w0+math.Log(energy/total))
	}
}
