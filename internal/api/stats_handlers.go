package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goodaegwang/cirrus/internal/api/presenter"
	"github.com/goodaegwang/cirrus/internal/core"
	"github.com/goodaegwang/cirrus/internal/service"
)

// Validation codes for the statistics endpoints.
const (
	codeMissingServiceID   = "DATA401"
	codeMissingDeviceID    = "DATA402"
	codeMissingUnitNumbers = "DATA403"
	codeMissingDataType    = "DATA404"
	codeMissingStartDate   = "DATA405"
	codeMissingEndDate     = "DATA406"
	codeMissingInterval    = "DATA407"
	codeMissingTimezone    = "DATA408"

	codeMissingStatType     = "SERVICEUSER408"
	codeWrongStatType       = "SERVICEUSER409"
	codeStatStartMissing    = "SERVICEUSER415"
	codeStatStartBadFormat  = "SERVICEUSER416"
	codeStatEndMissing      = "SERVICEUSER417"
	codeStatEndBadFormat    = "SERVICEUSER418"
	codeStatIntervalMissing = "SERVICEUSER419"
	codeWrongStatInterval   = "SERVICEUSER420"
)

// requireJSON rejects anything but an application/json content type.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/json") {
		presenter.Error(w, r, "Invalid content-type.", http.StatusUnsupportedMediaType)
		return false
	}
	return true
}

// timezoneOffset resolves an IANA timezone name to its current offset
// from UTC in whole hours.
func timezoneOffset(name string) (int, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return 0, err
	}
	_, seconds := time.Now().In(loc).Zone()
	return seconds / 3600, nil
}

// handleStatistics serves bucketed telemetry aggregates for one device.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !requireJSON(w, r) {
		return
	}

	q := r.URL.Query()
	serviceID := q.Get("serviceId")
	deviceID := q.Get("deviceId")
	unitNumbers := q.Get("unitNumbers")
	dataType := q.Get("dataType")
	startDate := q.Get("startDate")
	endDate := q.Get("endDate")
	interval := q.Get("interval")
	timezone := q.Get("timezone")

	switch {
	case serviceID == "":
		presenter.CodedError(w, r, codeMissingServiceID, "service id is missing.", http.StatusBadRequest)
		return
	case deviceID == "":
		presenter.CodedError(w, r, codeMissingDeviceID, "device id is missing.", http.StatusBadRequest)
		return
	case unitNumbers == "":
		presenter.CodedError(w, r, codeMissingUnitNumbers, "unitNumbers are missing.", http.StatusBadRequest)
		return
	case dataType == "":
		presenter.CodedError(w, r, codeMissingDataType, "dataType is missing.", http.StatusBadRequest)
		return
	case endDate != "" && startDate == "":
		presenter.CodedError(w, r, codeMissingStartDate, "start date is missing.", http.StatusBadRequest)
		return
	case startDate != "" && endDate == "":
		presenter.CodedError(w, r, codeMissingEndDate, "end date is missing.", http.StatusBadRequest)
		return
	case dataType != "raw" && interval == "":
		presenter.CodedError(w, r, codeMissingInterval, "interval is missing.", http.StatusBadRequest)
		return
	case timezone == "":
		presenter.CodedError(w, r, codeMissingTimezone, "timezone is missing.", http.StatusBadRequest)
		return
	}

	offset, err := timezoneOffset(timezone)
	if err != nil {
		presenter.Error(w, r, "invalid timezone.", http.StatusBadRequest)
		return
	}

	// raw queries skip aggregation, so the finest bucket stands in when
	// no interval is given
	if interval == "" {
		interval = "1m"
	}
	// both dates omitted means today, in the requested timezone
	if startDate == "" && endDate == "" {
		today := time.Now().UTC().Add(time.Duration(offset) * time.Hour).Format("2006-01-02")
		startDate, endDate = today, today
	}

	result, err := s.statistics.GetStatistics(ctx, core.StatisticsQuery{
		ServiceID:   serviceID,
		DeviceID:    deviceID,
		UnitNumbers: strings.Split(unitNumbers, ","),
		DataType:    dataType,
		StartDate:   startDate,
		EndDate:     endDate,
		Interval:    interval,
		TimeOffset:  offset,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServiceNotFound):
			presenter.Error(w, r, "The service does not exist.", http.StatusNotFound)
		case errors.Is(err, service.ErrDeviceNotFound):
			presenter.Error(w, r, "The device does not exist.", http.StatusNotFound)
		default:
			logger.Error().Err(err).Msg("statistics query failed")
			presenter.Error(w, r, "failed to query statistics", http.StatusInternalServerError)
		}
		return
	}

	presenter.JSON(w, r, result, http.StatusOK)
}

var (
	userStatTypes     = map[string]string{"total": service.StatTotal, "new": service.StatJoin, "withdrawal": service.StatWithdrawal}
	userStatIntervals = map[string]struct{}{"1h": {}, "1d": {}, "1w": {}, "1M": {}}
)

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// handleUserStatistics serves per-bucket user-count series for one
// service: new signups, withdrawals, or the cumulative total.
func (s *Server) handleUserStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if !requireJSON(w, r) {
		return
	}

	q := r.URL.Query()
	statType := q.Get("type")
	startDate := q.Get("startDate")
	endDate := q.Get("endDate")
	interval := q.Get("interval")

	internalType, knownType := userStatTypes[statType]
	switch {
	case statType == "":
		presenter.CodedError(w, r, codeMissingStatType, "type is missing.", http.StatusBadRequest)
		return
	case !knownType:
		presenter.CodedError(w, r, codeWrongStatType, "wrong type.", http.StatusBadRequest)
		return
	case startDate == "":
		presenter.CodedError(w, r, codeStatStartMissing, "startDate is missing.", http.StatusBadRequest)
		return
	case !validDate(startDate):
		presenter.CodedError(w, r, codeStatStartBadFormat, "startDate must be in the format [YYYY-MM-DD].", http.StatusBadRequest)
		return
	case endDate == "":
		presenter.CodedError(w, r, codeStatEndMissing, "endDate is missing.", http.StatusBadRequest)
		return
	case !validDate(endDate):
		presenter.CodedError(w, r, codeStatEndBadFormat, "endDate must be in the format [YYYY-MM-DD].", http.StatusBadRequest)
		return
	case interval == "":
		presenter.CodedError(w, r, codeStatIntervalMissing, "interval is missing.", http.StatusBadRequest)
		return
	}
	if _, ok := userStatIntervals[interval]; !ok {
		presenter.CodedError(w, r, codeWrongStatInterval, "wrong interval.", http.StatusBadRequest)
		return
	}

	serviceID := r.PathValue("serviceId")
	result, err := s.statistics.GetUserStatistics(ctx, serviceID, internalType, startDate, endDate, interval)
	if err != nil {
		if errors.Is(err, service.ErrServiceNotFound) {
			presenter.Error(w, r, "The service does not exist.", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Msg("user statistics query failed")
		presenter.Error(w, r, "failed to query user statistics", http.StatusInternalServerError)
		return
	}

	presenter.JSON(w, r, result, http.StatusOK)
}
