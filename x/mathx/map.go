package mathx

// MapU16 maps x in [inMin,inMax] to [outMin,outMax] with 32-bit intermediates.
// Clamps to the output range if x is outside. outMin may be greater than
// outMax for a falling mapping; the result is then measured from inMax so
// that truncation matches (inMax-x)*span/width.
func MapU16(x, inMin, inMax, outMin, outMax uint16) uint16 {
	if inMax == inMin {
		return outMin
	}
	if inMin > inMax {
		inMin, inMax = inMax, inMin
		outMin, outMax = outMax, outMin
	}
	x = Clamp(x, inMin, inMax)
	den := uint32(inMax - inMin)
	if outMax >= outMin {
		num := uint32(x-inMin) * uint32(outMax-outMin)
		return outMin + uint16(num/den)
	}
	num := uint32(inMax-x) * uint32(outMin-outMax)
	return outMax + uint16(num/den)
}
