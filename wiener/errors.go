package wiener

import (
	"fmt"
	"math"
)

// ArithmeticFault reports a NaN or infinite value produced by the separation
// math. It is fatal for the track being processed: the affected estimates
// must not be written out as audio.
type ArithmeticFault struct {
	Stage string
}

func (e *ArithmeticFault) Error() string {
	return fmt.Sprintf("arithmetic fault: non-finite value in %s", e.Stage)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteComplex(v complex128) bool {
	return finite(real(v)) && finite(imag(v))
}

func finiteMat(m Mat2) bool {
	for i := 0; i < NumChannels; i++ {
		for j := 0; j < NumChannels; j++ {
			if !finiteComplex(m[i][j]) {
				return false
			}
		}
	}
	return true
}

func checkStats(st *SourceStats) error {
	for f := range st.PSD {
		for _, v := range st.PSD[f] {
			if !finite(v) {
				return &ArithmeticFault{Stage: fmt.Sprintf("psd of source %q", st.Name)}
			}
		}
	}
	for _, m := range st.Spatial {
		if !finiteMat(m) {
			return &ArithmeticFault{Stage: fmt.Sprintf("spatial covariance of source %q", st.Name)}
		}
	}
	return nil
}

func checkGain(name string, gain [][]Mat2) error {
	for f := range gain {
		for _, m := range gain[f] {
			if !finiteMat(m) {
				return &ArithmeticFault{Stage: fmt.Sprintf("gain of source %q", name)}
			}
		}
	}
	return nil
}

func checkSignal(name string, audio [][]float64) error {
	for _, channel := range audio {
		for _, v := range channel {
			if !finite(v) {
				return &ArithmeticFault{Stage: fmt.Sprintf("estimate of source %q", name)}
			}
		}
	}
	return nil
}
