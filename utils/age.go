package utils

import "time"

// AgeYears computes a whole-year age from a date of birth, counting the
// birthday itself as already turned.
func AgeYears(dob time.Time, now time.Time) int {
	years := now.Year() - dob.Year()
	anniversary := time.Date(now.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(anniversary) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
