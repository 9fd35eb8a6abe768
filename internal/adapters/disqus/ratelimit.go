package disqus

import "golang.org/x/time/rate"

// newLimiter создаёт ограничитель скорости запросов к Disqus API.
// Квоты Disqus считаются за час, поэтому значения по умолчанию скромные.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		rps = 4
	}
	if burst <= 0 {
		burst = 8
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
