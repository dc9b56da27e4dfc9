package models

// PortfolioInput is the raw record set a portfolio is assembled from, either read from the
// csv input directory or from postgres
type PortfolioInput struct {
	Covariance     []CovarianceCell
	Borrowers      []BorrowerRecord
	MigrationProbs []MigrationProbability
	RiskFactors    []RiskFactorWeight
	Exposures      []ExposureRecord
	Valuations     []Valuation
}

type CovarianceCell struct {
	RiskFactor1 int     `db:"risk_factor_1" csv:"risk_factor_1"`
	RiskFactor2 int     `db:"risk_factor_2" csv:"risk_factor_2"`
	Correlation float64 `db:"correlation" csv:"correlation"`
}

type BorrowerRecord struct {
	BorrowerId string  `db:"borrower_id" csv:"borrower_id"`
	RiskGroup  string  `db:"risk_group" csv:"risk_group"`
	Rating     int     `db:"rating" csv:"rating"`
	R2         float64 `db:"r2" csv:"r2"` // rho, dependency on the systematic factor
	Eps        float64 `db:"eps" csv:"eps"`
}

type MigrationProbability struct {
	BorrowerId  string  `db:"borrower_id" csv:"borrower_id"`
	Rating      int     `db:"rating" csv:"rating"`
	Probability float64 `db:"probability" csv:"probability"`
}

type RiskFactorWeight struct {
	BorrowerId string  `db:"borrower_id" csv:"borrower_id"`
	RiskFactor int     `db:"risk_factor" csv:"risk_factor"`
	Weight     float64 `db:"weight" csv:"weight"`
}

type ExposureRecord struct {
	ExposureId  string  `db:"exposure_id" csv:"exposure_id"`
	BorrowerId  string  `db:"borrower_id" csv:"borrower_id"`
	Outstanding float64 `db:"outstanding" csv:"outstanding"`
}

type Valuation struct {
	ExposureId string  `db:"exposure_id" csv:"exposure_id"`
	Rating     int     `db:"rating" csv:"rating"`
	Valuation  float64 `db:"valuation" csv:"valuation"`
}

// NumRiskFactors is one past the largest risk factor index in the covariance cells
func (pi *PortfolioInput) NumRiskFactors() int {
	n := 0
	for _, c := range pi.Covariance {
		n = max(n, c.RiskFactor1+1, c.RiskFactor2+1)
	}
	return n
}
