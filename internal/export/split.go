package export

import (
	"context"
	"regexp"

	"github.com/komiyamma/imageplan/internal/ledger"
)

// PublishSplit partitions l by family and writes one sub-ledger per group.
// Existing sub-ledgers are overwritten.
func PublishSplit(ctx context.Context, l *ledger.Ledger, pattern *regexp.Regexp, sink Sink) (Report, error) {
	var report Report
	for _, group := range ledger.Split(l, pattern) {
		name := group.FileName()
		if err := sink.Put(ctx, name, []byte(group.Render(l.Header))); err != nil {
			return report, err
		}
		report.Written = append(report.Written, name)
	}
	return report, nil
}
