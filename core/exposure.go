package core

import "slices"

// Exposure is a single position with its valuation at every rating class
type Exposure struct {
	Id          string
	Outstanding float64
	valuations  []float64
}

func NewExposure(id string, outstanding float64, valuations []float64) *Exposure {
	return &Exposure{
		Id:          id,
		Outstanding: outstanding,
		valuations:  slices.Clone(valuations),
	}
}

// Valuation returns the value of the position if the borrower ends in the given rating
func (e *Exposure) Valuation(rating int) (float64, error) {
	if rating < 0 || rating >= len(e.valuations) {
		return 0, configErrorf("exposure valuation", ErrRatingOutOfRange, "rating %d not in [0,%d) for exposure %s", rating, len(e.valuations), e.Id)
	}
	return e.valuations[rating], nil
}

func (e *Exposure) NumValues() int {
	return len(e.valuations)
}
