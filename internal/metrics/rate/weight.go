package rate

import (
	"context"
	"net/http"
	"strconv"

	futures "github.com/adshao/go-binance/v2/futures"

	"cryptoquote/logger"
)

// FetchRequestWeightLimit asks Binance exchangeInfo for the REQUEST_WEIGHT per
// minute limit. Zero means the limit was not listed.
func FetchRequestWeightLimit(ctx context.Context, client *futures.Client) (int64, error) {
	info, err := client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return 0, err
	}
	for _, rl := range info.RateLimits {
		if rl.RateLimitType == "REQUEST_WEIGHT" && rl.Interval == "MINUTE" {
			return rl.Limit, nil
		}
	}
	return 0, nil
}

// DepthWeight is the request weight Binance charges for a depth snapshot
// of limit levels.
func DepthWeight(limit int) int64 {
	switch {
	case limit <= 100:
		return 2
	case limit <= 500:
		return 5
	case limit <= 1000:
		return 10
	default:
		return 20
	}
}

// ReportBinanceWeight emits the used weight from X-MBX-USED-WEIGHT-1m and,
// when limit is known, the remaining budget. It returns the used weight.
func ReportBinanceWeight(log *logger.Log, source string, header http.Header, limit int64, ip string) int64 {
	used, _ := strconv.ParseInt(header.Get("X-MBX-USED-WEIGHT-1m"), 10, 64)

	l := log.WithComponent(component(source))
	fields := logger.Fields{"source": source, "ip": ip}
	l.LogMetric(component(source), "used_weight", used, "gauge", fields)
	if limit > 0 {
		l.LogMetric(component(source), "remaining_weight", limit-used, "gauge", logger.Fields{"source": source, "ip": ip})
	}
	return used
}
