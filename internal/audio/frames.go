package audio

// Frames is a view over a block of stereo PCM frames, one [2]float64 per instant.
// The device hands a Frames to the fill callback instead of a raw byte buffer.
type Frames [][2]float64

// Len returns the number of frames in the view.
func (f Frames) Len() int {
	return len(f)
}

// Silence zeroes every frame from index from to the end of the view.
// Out-of-range indexes are clamped.
func (f Frames) Silence(from int) {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(f); i++ {
		f[i] = [2]float64{}
	}
}
