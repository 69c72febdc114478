// Package analysis finds periodic behaviour in per-step run statistics.
//
//   - [PowerSpectrum]: DFT magnitude of a mean-removed series
//   - [Dominant]: strongest frequency of a spectrum
//
// Bouncing populations show up as a clear peak in the kinetic energy or
// contact series:
//
//	ps := analysis.PowerSpectrum(energy)
//	hz, _ := analysis.Dominant(ps, len(energy), cfg.FixedDt)
package analysis
