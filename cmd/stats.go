package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/goodaegwang/cirrus/pkg/client"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Query telemetry and user statistics",
}

var (
	statsDeviceOpts struct {
		serviceID   string
		deviceID    string
		unitNumbers string
		dataType    string
		startDate   string
		endDate     string
		interval    string
		timezone    string
	}
)

var statsDeviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Show a bucketed telemetry series for one device",
	Example: `  cirrus stats device --service smart-home --device thermo-1 \
      --units 1,2 --data-type avg --start 2024-05-01 --end 2024-05-07 \
      --interval 1d --timezone UTC`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		units := strings.Split(statsDeviceOpts.unitNumbers, ",")
		series, correlation, err := cli.Statistics(cmd.Context(), client.StatisticsOpts{
			ServiceID:   statsDeviceOpts.serviceID,
			DeviceID:    statsDeviceOpts.deviceID,
			UnitNumbers: units,
			DataType:    statsDeviceOpts.dataType,
			StartDate:   statsDeviceOpts.startDate,
			EndDate:     statsDeviceOpts.endDate,
			Interval:    statsDeviceOpts.interval,
			Timezone:    statsDeviceOpts.timezone,
		})
		if err != nil {
			return logError(err, correlation, "failed to query statistics")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		header := table.Row{"Bucket"}
		for _, u := range units {
			header = append(header, "Unit "+u)
		}
		t.AppendHeader(header)

		for _, point := range series {
			row := table.Row{point.Date}
			for _, u := range units {
				if v := point.Units[u]; v != nil {
					row = append(row, fmt.Sprintf("%.2f", *v))
				} else {
					row = append(row, faint("-"))
				}
			}
			t.AppendRow(row)
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

var statsUsersOpts struct {
	serviceID string
	statType  string
	startDate string
	endDate   string
	interval  string
}

var statsUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Show a user-count series for one service",
	Example: `  cirrus stats users --service smart-home --type total \
      --start 2024-05-01 --end 2024-05-31 --interval 1d`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		series, correlation, err := cli.UserStatistics(cmd.Context(), client.UserStatisticsOpts{
			ServiceID: statsUsersOpts.serviceID,
			Type:      statsUsersOpts.statType,
			StartDate: statsUsersOpts.startDate,
			EndDate:   statsUsersOpts.endDate,
			Interval:  statsUsersOpts.interval,
		})
		if err != nil {
			return logError(err, correlation, "failed to query user statistics")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Bucket", "Count"})
		for _, point := range series {
			t.AppendRow(table.Row{point.Date, point.Cnt})
		}

		applyTableFormat(t)
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsDeviceCmd, statsUsersCmd)

	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.serviceID, "service", "", "Service ID")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.deviceID, "device", "", "Device ID")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.unitNumbers, "units", "", "Comma-separated unit numbers")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.dataType, "data-type", "avg", "Aggregate: min, max, avg, sum, count, raw")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.startDate, "start", "", "Start date (YYYY-MM-DD)")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.endDate, "end", "", "End date (YYYY-MM-DD)")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.interval, "interval", "1d", "Bucket interval, e.g. 15m, 1h, 1d, 1w, 1M")
	statsDeviceCmd.Flags().StringVar(&statsDeviceOpts.timezone, "timezone", "UTC", "IANA timezone for bucket boundaries")
	_ = statsDeviceCmd.MarkFlagRequired("service")
	_ = statsDeviceCmd.MarkFlagRequired("device")
	_ = statsDeviceCmd.MarkFlagRequired("units")

	statsUsersCmd.Flags().StringVar(&statsUsersOpts.serviceID, "service", "", "Service ID")
	statsUsersCmd.Flags().StringVar(&statsUsersOpts.statType, "type", "total", "Series type: total, new, withdrawal")
	statsUsersCmd.Flags().StringVar(&statsUsersOpts.startDate, "start", "", "Start date (YYYY-MM-DD)")
	statsUsersCmd.Flags().StringVar(&statsUsersOpts.endDate, "end", "", "End date (YYYY-MM-DD)")
	statsUsersCmd.Flags().StringVar(&statsUsersOpts.interval, "interval", "1d", "Bucket interval: 1h, 1d, 1w, 1M")
	_ = statsUsersCmd.MarkFlagRequired("service")
	_ = statsUsersCmd.MarkFlagRequired("start")
	_ = statsUsersCmd.MarkFlagRequired("end")
}
