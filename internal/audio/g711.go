// Package audio converts client audio into the PCM16 format the providers
// and the recorder expect.
package audio

// ULawToLinear decodes one G.711 mu-law byte to a 16-bit sample.
func ULawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + 0x84
	value <<= uint(exp)
	value -= 0x84
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// ALawToLinear decodes one G.711 A-law byte to a 16-bit sample.
func ALawToLinear(a byte) int16 {
	a ^= 0x55
	sign := a & 0x80
	exp := (a >> 4) & 0x07
	mant := a & 0x0F
	var value int
	if exp != 0 {
		value = (int(mant)<<4 + 0x108) << (exp - 1)
	} else {
		value = (int(mant) << 4) + 8
	}
	if sign == 0 {
		return int16(-value)
	}
	return int16(value)
}

// DecodeULaw expands mu-law bytes into little-endian PCM16.
func DecodeULaw(src []byte) []byte {
	return decode(src, ULawToLinear)
}

// DecodeALaw expands A-law bytes into little-endian PCM16.
func DecodeALaw(src []byte) []byte {
	return decode(src, ALawToLinear)
}

func decode(src []byte, fn func(byte) int16) []byte {
	out := make([]byte, len(src)*2)
	for i, b := range src {
		s := fn(b)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}
