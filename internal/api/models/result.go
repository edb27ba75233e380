package models

// ResultsQuery filters the finished-games listing.
type ResultsQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Player string `form:"player" binding:"omitempty,max=64"`
}
