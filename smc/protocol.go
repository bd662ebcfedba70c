package smc

import (
	"fmt"
	"strconv"
)

// Line terminator required by the controller.
const terminator = "\r\n"

// encode formats an addressed command as "{address}{body}\r\n".
func encode(address int, body string) []byte {
	return []byte(fmt.Sprintf("%d%s%s", address, body, terminator))
}

// encodeUnaddressed formats a bare command as "{body}\r\n".
func encodeUnaddressed(body string) []byte {
	return []byte(body + terminator)
}

// parsePosition extracts the signed encoder count from a position
// response. The controller prefixes the number with a single status
// character, which is discarded.
func parsePosition(line string) (int, error) {
	if line == "" {
		return 0, fmt.Errorf("%w: empty position response", ErrParse)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return 0, fmt.Errorf("%w: position %q", ErrParse, line)
	}
	return n, nil
}

// toDegrees converts a raw encoder count to output-shaft degrees.
func toDegrees(raw int, degreesPerMotorRev int, gearboxRatio float64) float64 {
	return float64(raw) / (float64(degreesPerMotorRev) * gearboxRatio)
}
