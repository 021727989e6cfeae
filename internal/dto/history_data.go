// HistoryData is a paginated response payload for the detection history.
package dto

import "safetyvision/internal/model"

type HistoryData struct {
	Runs        []model.Run    `json:"runs"`
	Length      int            `json:"length"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Limit       int            `json:"pageSize"`
	LabelCounts map[string]int `json:"labelCounts"`
}
