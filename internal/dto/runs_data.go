// RunsData is a paginated response payload for the run history.
package dto

import "parkingwatch/internal/model"

type RunsData struct {
	Runs        []model.Run `json:"runs"`
	Length      int         `json:"length"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	Limit       int         `json:"pageSize"`
}

// IntervalsData lists the stored intervals of one run.
type IntervalsData struct {
	Run       model.Run        `json:"run"`
	Intervals []model.Interval `json:"intervals"`
}
