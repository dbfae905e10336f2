package domain

import "fmt"

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count in base-1024 units with two decimals,
// e.g. 104857600 → "100.00 MB". Zero is "0 Bytes".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(sizeUnits)-1 {
		value /= 1024
		i++
	}

	return fmt.Sprintf("%.2f %s", value, sizeUnits[i])
}
