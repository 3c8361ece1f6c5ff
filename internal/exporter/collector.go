package exporter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/piholestats/pihole-sqlite-exporter/internal/snapshot"
)

// Collector converts the current snapshot into Prometheus series. All
// metrics are emitted as const metrics built fresh per Collect, so every
// scrape of /metrics sees exactly one consistent snapshot.
type Collector struct {
	holder  *snapshot.Holder
	skipped func() int64

	status             *prometheus.Desc
	queriesToday       *prometheus.Desc
	queriesAllTypes    *prometheus.Desc
	blockedToday       *prometheus.Desc
	blockedPctToday    *prometheus.Desc
	forwarded          *prometheus.Desc
	cached             *prometheus.Desc
	uniqueClients      *prometheus.Desc
	uniqueDomains      *prometheus.Desc
	clientsEverSeen    *prometheus.Desc
	domainsBlocked     *prometheus.Desc
	queryTypes         *prometheus.Desc
	replyTypes         *prometheus.Desc
	topAds             *prometheus.Desc
	topQueries         *prometheus.Desc
	topSources         *prometheus.Desc
	destRequests       *prometheus.Desc
	destResponseTime   *prometheus.Desc
	destResponseVar    *prometheus.Desc
	queriesLifetime    *prometheus.Desc
	blockedLifetime    *prometheus.Desc
	destLifetime       *prometheus.Desc
	requestRate        *prometheus.Desc
	scrapeDuration     *prometheus.Desc
	scrapeSuccess      *prometheus.Desc
	scrapesSkipped     *prometheus.Desc
}

// NewCollector builds a Collector over holder. skipped supplies the running
// count of scrape cycles declined by the overlap guard.
func NewCollector(holder *snapshot.Holder, skipped func() int64) *Collector {
	host := []string{"hostname"}
	hostType := []string{"hostname", "type"}
	hostDomain := []string{"hostname", "domain"}
	hostSource := []string{"hostname", "source", "source_name"}
	hostDest := []string{"hostname", "destination", "destination_name"}

	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(name, help, labels, nil)
	}

	return &Collector{
		holder:  holder,
		skipped: skipped,

		status: desc("pihole_status",
			"Whether Pi-hole is enabled", host),
		queriesToday: desc("pihole_dns_queries_today",
			"Represents the number of DNS queries made over the current day", host),
		queriesAllTypes: desc("pihole_dns_queries_all_types",
			"Represents the number of DNS queries across all types", host),
		blockedToday: desc("pihole_ads_blocked_today",
			"Represents the number of ads blocked over the current day", host),
		blockedPctToday: desc("pihole_ads_percentage_today",
			"Represents the percentage of ads blocked over the current day", host),
		forwarded: desc("pihole_queries_forwarded",
			"Represents the number of forwarded queries", host),
		cached: desc("pihole_queries_cached",
			"Represents the number of cached queries", host),
		uniqueClients: desc("pihole_unique_clients",
			"Represents the number of unique clients seen in the last 24h", host),
		uniqueDomains: desc("pihole_unique_domains",
			"Represents the number of unique domains seen", host),
		clientsEverSeen: desc("pihole_clients_ever_seen",
			"Represents the number of clients ever seen", host),
		domainsBlocked: desc("pihole_domains_being_blocked",
			"Represents the number of domains being blocked", host),
		queryTypes: desc("pihole_querytypes",
			"Represents the number of queries made by Pi-hole by type", hostType),
		replyTypes: desc("pihole_reply",
			"Represents the number of replies by type", hostType),
		topAds: desc("pihole_top_ads",
			"Represents the number of top ads by domain", hostDomain),
		topQueries: desc("pihole_top_queries",
			"Represents the number of top queries by domain", hostDomain),
		topSources: desc("pihole_top_sources",
			"Represents the number of top sources by source host", hostSource),
		destRequests: desc("pihole_forward_destinations",
			"Represents the number of forward destination requests made by Pi-hole by destination", hostDest),
		destResponseTime: desc("pihole_forward_destinations_responsetime",
			"Represents the average response time of a destination in seconds", hostDest),
		destResponseVar: desc("pihole_forward_destinations_responsevariance",
			"Represents the response time variance of a destination in seconds", hostDest),
		queriesLifetime: desc("pihole_dns_queries_total",
			"Total number of DNS queries (lifetime, monotonic) as reported by Pi-hole FTL counters table", host),
		blockedLifetime: desc("pihole_ads_blocked_total",
			"Total number of blocked queries (lifetime, monotonic) as reported by Pi-hole FTL counters table", host),
		destLifetime: desc("pihole_forward_destinations_total",
			"Total number of forward destinations requests made by Pi-hole by destination (lifetime, derived from queries table)", hostDest),
		requestRate: desc("pihole_request_rate",
			"Represents the number of requests per second", host),
		scrapeDuration: desc("pihole_scrape_duration_seconds",
			"Time spent reading the Pi-hole databases in seconds", host),
		scrapeSuccess: desc("pihole_scrape_success",
			"Whether the last scrape succeeded (1 for success, 0 for failure)", host),
		scrapesSkipped: desc("pihole_scrapes_skipped_total",
			"Total number of scrape cycles skipped because a previous cycle was still running", host),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements prometheus.Collector. Before the first completed scrape
// cycle it emits nothing; /metrics simply returns an empty exposition.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.holder.Load()
	if snap == nil {
		return
	}
	host := snap.Hostname

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, append([]string{host}, labels...)...)
	}
	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, append([]string{host}, labels...)...)
	}

	gauge(c.status, snap.Status)
	gauge(c.queriesToday, snap.DNSQueriesToday)
	gauge(c.queriesAllTypes, snap.DNSQueriesToday)
	gauge(c.blockedToday, snap.AdsBlockedToday)
	gauge(c.blockedPctToday, snap.AdsPercentageToday)
	gauge(c.forwarded, snap.QueriesForwarded)
	gauge(c.cached, snap.QueriesCached)
	gauge(c.uniqueClients, snap.UniqueClients)
	gauge(c.uniqueDomains, snap.UniqueDomains)
	gauge(c.clientsEverSeen, snap.ClientsEverSeen)
	gauge(c.domainsBlocked, snap.DomainsBeingBlocked)

	for typ, v := range snap.QueryTypes {
		gauge(c.queryTypes, v, typ)
	}
	for typ, v := range snap.ReplyTypes {
		gauge(c.replyTypes, v, typ)
	}
	for _, e := range snap.TopAds {
		gauge(c.topAds, e.Count, e.Label)
	}
	for _, e := range snap.TopQueries {
		gauge(c.topQueries, e.Count, e.Label)
	}
	for _, e := range snap.TopSources {
		gauge(c.topSources, e.Count, e.IP, e.Name)
	}
	for _, d := range snap.ForwardDestinations {
		gauge(c.destRequests, d.Count, d.Name, d.Name)
		gauge(c.destResponseTime, d.ResponseTimeMean, d.Name, d.Name)
		gauge(c.destResponseVar, d.ResponseTimeVariance, d.Name, d.Name)
	}

	counter(c.queriesLifetime, snap.TotalQueriesLifetime)
	counter(c.blockedLifetime, snap.BlockedQueriesLifetime)
	for dest, v := range snap.LifetimeDestinations {
		counter(c.destLifetime, v, dest, dest)
	}

	gauge(c.requestRate, snap.RequestRate)
	gauge(c.scrapeDuration, snap.LastScrapeDuration.Seconds())
	if snap.LastScrapeSuccess {
		gauge(c.scrapeSuccess, 1)
	} else {
		gauge(c.scrapeSuccess, 0)
	}
	counter(c.scrapesSkipped, float64(c.skipped()))
}
