package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/goodaegwang/cirrus/internal/api"
	"github.com/goodaegwang/cirrus/internal/stats"
)

type StatisticsOpts struct {
	ServiceID   string
	DeviceID    string
	UnitNumbers []string
	DataType    string
	StartDate   string
	EndDate     string
	Interval    string
	Timezone    string
}

// Statistics retrieves a gap-free telemetry series for one device.
func (c *Client) Statistics(ctx context.Context, opts StatisticsOpts) ([]stats.UnitsPoint, string, error) {
	ub := c.url().setPath(api.StatisticsRoute).
		addQueryParam("serviceId", opts.ServiceID).
		addQueryParam("deviceId", opts.DeviceID).
		addQueryParam("unitNumbers", strings.Join(opts.UnitNumbers, ",")).
		addQueryParam("dataType", opts.DataType).
		addQueryParam("timezone", opts.Timezone)
	if opts.StartDate != "" {
		ub = ub.addQueryParam("startDate", opts.StartDate)
	}
	if opts.EndDate != "" {
		ub = ub.addQueryParam("endDate", opts.EndDate)
	}
	if opts.Interval != "" {
		ub = ub.addQueryParam("interval", opts.Interval)
	}

	var series []stats.UnitsPoint
	correlation, err := c.get(ctx, ub.build(), &series)
	return series, correlation, err
}

type UserStatisticsOpts struct {
	ServiceID string
	Type      string // total, new, withdrawal
	StartDate string
	EndDate   string
	Interval  string // 1h, 1d, 1w, 1M
}

// UserStatistics retrieves a per-bucket user-count series for a service.
func (c *Client) UserStatistics(ctx context.Context, opts UserStatisticsOpts) ([]stats.CountPoint, string, error) {
	path := strings.ReplaceAll(api.UserStatisticsRoute, "{serviceId}", url.PathEscape(opts.ServiceID))

	var series []stats.CountPoint
	correlation, err := c.get(ctx, c.url().
		setPath(path).
		addQueryParam("type", opts.Type).
		addQueryParam("startDate", opts.StartDate).
		addQueryParam("endDate", opts.EndDate).
		addQueryParam("interval", opts.Interval).
		build(), &series)
	return series, correlation, err
}
