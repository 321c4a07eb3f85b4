package audioio

import "math"

// Resample converts audio from one sample rate to another using linear interpolation.
// This is a simple resampler suitable for speech audio.
// For higher quality, consider using a polyphase filter.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate {
		return samples
	}

	if len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)

	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			// Linear interpolation
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}

	return result
}

// ResampleBytes resamples raw PCM16 bytes.
func ResampleBytes(data []byte, fromRate, toRate int) []byte {
	samples := BytesToSamples(data)
	resampled := Resample(samples, fromRate, toRate)
	return SamplesToBytes(resampled)
}

// BytesToSamples converts raw PCM16 little-endian bytes to int16 samples.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(data[i*2]) | int16(data[i*2+1])<<8
	}
	return samples
}

// SamplesToBytes converts int16 samples to raw PCM16 little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return data
}

// ApplyGain scales samples by gain, clipping at the int16 range.
func ApplyGain(samples []int16, gain float64) []int16 {
	if gain == 1 {
		return samples
	}
	result := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * gain
		switch {
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		result[i] = int16(v)
	}
	return result
}

// CalculateRMS calculates the root mean square of samples.
// Returns a value between 0.0 and 1.0.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	rms := sum / float64(len(samples))
	// Normalize to 0-1 range (32767^2 = max possible)
	return rms / (32767 * 32767)
}

