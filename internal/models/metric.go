package models

// Request counter of a single user on a single endpoint
type EndpointMetric struct {
	Method       string
	Endpoint     string
	UserID       int64
	RequestCount int64
}
