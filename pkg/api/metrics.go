package api

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avykov/simex/pkg/platform"
	"github.com/avykov/simex/pkg/sched"
)

// collector exports scheduler counters and per-book depth on demand. All
// values are read from live snapshots at scrape time.
type collector struct {
	platform *platform.Platform
	sched    *sched.Scheduler

	outstanding *prometheus.Desc
	processed   *prometheus.Desc
	errors      *prometheus.Desc
	active      *prometheus.Desc
	awaiting    *prometheus.Desc
	avgExec     *prometheus.Desc
	maxExec     *prometheus.Desc
	depth       *prometheus.Desc
	price       *prometheus.Desc
}

func newCollector(p *platform.Platform, s *sched.Scheduler) *collector {
	return &collector{
		platform: p,
		sched:    s,
		outstanding: prometheus.NewDesc("simex_scheduler_outstanding_tasks",
			"Tasks admitted but not yet finished", nil, nil),
		processed: prometheus.NewDesc("simex_scheduler_processed_tasks_total",
			"Tasks that finished executing", nil, nil),
		errors: prometheus.NewDesc("simex_scheduler_errors_total",
			"Tasks that finished with an error", nil, nil),
		active: prometheus.NewDesc("simex_scheduler_active_tasks",
			"Tasks currently executing", nil, nil),
		awaiting: prometheus.NewDesc("simex_scheduler_awaiting_tasks",
			"Tasks waiting on a dependency", nil, nil),
		avgExec: prometheus.NewDesc("simex_scheduler_avg_exec_seconds",
			"Mean execution time of successful tasks", nil, nil),
		maxExec: prometheus.NewDesc("simex_scheduler_max_exec_seconds",
			"Longest execution time of a successful task", nil, nil),
		depth: prometheus.NewDesc("simex_book_depth",
			"Resting aggregate count per book side", []string{"symbol", "side"}, nil),
		price: prometheus.NewDesc("simex_market_price",
			"Best ask, or -1 when the book has no asks", []string{"symbol"}, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.outstanding
	ch <- c.processed
	ch <- c.errors
	ch <- c.active
	ch <- c.awaiting
	ch <- c.avgExec
	ch <- c.maxExec
	ch <- c.depth
	ch <- c.price
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := c.sched.Metrics()
	ch <- prometheus.MustNewConstMetric(c.outstanding, prometheus.GaugeValue, float64(m.TotalTasks))
	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(m.ProcessedTasks))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(m.Errors))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(m.ActiveTasks))
	ch <- prometheus.MustNewConstMetric(c.awaiting, prometheus.GaugeValue, float64(m.AwaitingTasks))
	ch <- prometheus.MustNewConstMetric(c.avgExec, prometheus.GaugeValue, m.AvgExecTime.Seconds())
	ch <- prometheus.MustNewConstMetric(c.maxExec, prometheus.GaugeValue, m.MaxExecTime.Seconds())

	for _, symbol := range c.platform.Symbols() {
		b, err := c.platform.Book(symbol)
		if err != nil {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue,
			float64(len(b.Bids())), symbol, "buy")
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue,
			float64(len(b.Asks())), symbol, "sell")
		p, _ := b.Price().Float64()
		ch <- prometheus.MustNewConstMetric(c.price, prometheus.GaugeValue, p, symbol)
	}
}
