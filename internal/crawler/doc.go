// Package crawler holds the domain model for hero media scans: the scan
// request and record types, the collaborator interfaces (browser, prober,
// metrics, sinks), the media candidate selector, the record aggregator, and
// the failure classifier shared by the worker and dispatcher packages.
package crawler
