package dto

import "linkedpost/domain/model"

// TriggerResponse is returned by the scheduled-post trigger endpoint.
type TriggerResponse struct {
	Message string              `json:"message"`
	Results []model.SweepResult `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
