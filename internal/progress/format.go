package progress

import (
	"fmt"
	"strconv"
	"time"
)

var iecUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

func FormatBytesIEC(n int64) string {
	if n < 1024 {
		return strconv.FormatInt(max(n, 0), 10) + " B"
	}
	v := float64(n) / 1024
	i := 0
	for v >= 1024 && i < len(iecUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + iecUnits[i]
}

// EstimateETA returns "" when the size or the rate is unknown.
func EstimateETA(totalBytes, doneBytes int64, bytesPerSecond float64) string {
	if totalBytes <= 0 || bytesPerSecond <= 0 {
		return ""
	}
	remaining := totalBytes - doneBytes
	if remaining <= 0 {
		return "0m"
	}
	return formatETA(time.Duration(float64(remaining) / bytesPerSecond * float64(time.Second)))
}

// formatETA keeps the two largest units: "<1m", "12m", "1h 5m", "1d 3h".
func formatETA(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return "<1m"
	}
	total := int64(d / time.Minute)
	days, hours, minutes := total/(24*60), total/60%24, total%60
	switch {
	case days > 0:
		return joinUnits(days, "d", hours, "h")
	case hours > 0:
		return joinUnits(hours, "h", minutes, "m")
	}
	return fmt.Sprintf("%dm", minutes)
}

func joinUnits(major int64, majorUnit string, minor int64, minorUnit string) string {
	if minor == 0 {
		return fmt.Sprintf("%d%s", major, majorUnit)
	}
	return fmt.Sprintf("%d%s %d%s", major, majorUnit, minor, minorUnit)
}
