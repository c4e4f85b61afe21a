package ingress

import "encoding/binary"

// resample8to16 upsamples 8kHz 16-bit signed linear audio to 16kHz using
// linear interpolation.
func resample8to16(input []byte) []byte {
	samples := make([]int16, len(input)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(input[i*2 : i*2+2]))
	}

	upsampled := make([]int16, len(samples)*2)
	for i := 0; i < len(samples)-1; i++ {
		upsampled[i*2] = samples[i]
		upsampled[i*2+1] = (samples[i] + samples[i+1]) / 2
	}
	if len(samples) > 0 {
		upsampled[len(upsampled)-2] = samples[len(samples)-1]
		upsampled[len(upsampled)-1] = samples[len(samples)-1]
	}

	output := make([]byte, len(upsampled)*2)
	for i, sample := range upsampled {
		binary.LittleEndian.PutUint16(output[i*2:i*2+2], uint16(sample))
	}

	return output
}
