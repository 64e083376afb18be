package routing

// minCallerDigits is the shortest digit string that carries an area code.
const minCallerDigits = 10

// ExtractAreaCode returns the three-digit area code of raw once every
// non-digit is stripped, or "" when fewer than ten digits remain. An
// eleven-digit number with the NANP country code 1 in front (+1 415 ...)
// yields the area code after the country code.
func ExtractAreaCode(raw string) string {
	var lead [4]byte
	n := 0
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c < '0' || c > '9' {
			continue
		}
		if n < len(lead) {
			lead[n] = c
		}
		n++
	}
	switch {
	case n < minCallerDigits:
		return ""
	case n == minCallerDigits+1 && lead[0] == '1':
		return string(lead[1:4])
	default:
		return string(lead[:3])
	}
}
