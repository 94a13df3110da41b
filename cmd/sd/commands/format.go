package commands

import (
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// formatSize 以 1024 为进制，保留两位小数并去掉多余的 0
func formatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(1024, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// shortAddress 0x1234...abcd
func shortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}
