package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "cpm/data/models"
)

func TestReadRecordsMatchesColumnsByHeader(t *testing.T) {
	// columns out of struct order, with an extra column and padding
	input := "eps, rating,borrower_id,risk_group,r2,comment\n" +
		"0.5, 2,B1,G1,0.25,first\n" +
		"0,0,B2,G1,1,second\n"

	res, err := ReadRecords[m.BorrowerRecord](strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []m.BorrowerRecord{
		{BorrowerId: "B1", RiskGroup: "G1", Rating: 2, R2: 0.25, Eps: 0.5},
		{BorrowerId: "B2", RiskGroup: "G1", Rating: 0, R2: 1, Eps: 0},
	}, res)
}

func TestReadRecordsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "missing header row"},
		{"missing column", "exposure_id,rating\nE1,0\n", `missing column "valuation"`},
		{"bad number", "exposure_id,rating,valuation\nE1,0,1.5\nE1,x,2\n", "line 3, column rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRecords[m.Valuation](strings.NewReader(tt.input))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReadPortfolioInput(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		CovarianceFile: "risk_factor_1,risk_factor_2,correlation\n0,0,1\n",
		BorrowerFile:   "borrower_id,risk_group,rating,r2,eps\nB1,G1,0,0.3,0.1\n",
		MigrationFile:  "borrower_id,rating,probability\nB1,0,0.95\nB1,1,0.05\n",
		RiskFactorFile: "borrower_id,risk_factor,weight\nB1,0,1\n",
		ExposureFile:   "exposure_id,borrower_id,outstanding\nE1,B1,100\n",
		ValuationFile:  "exposure_id,rating,valuation\nE1,0,101\nE1,1,35\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	pi, err := ReadPortfolioInput(dir)
	require.NoError(t, err)

	assert.Len(t, pi.Covariance, 1)
	assert.Equal(t, 1, pi.NumRiskFactors())
	assert.Equal(t, "G1", pi.Borrowers[0].RiskGroup)
	assert.Len(t, pi.MigrationProbs, 2)
	assert.Equal(t, 0.05, pi.MigrationProbs[1].Probability)
	assert.Equal(t, "B1", pi.Exposures[0].BorrowerId)
	assert.Equal(t, 35.0, pi.Valuations[1].Valuation)

	require.NoError(t, os.Remove(filepath.Join(dir, ExposureFile)))
	_, err = ReadPortfolioInput(dir)
	assert.ErrorContains(t, err, ExposureFile)
}

func TestWriteLossDistribution(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteLossDistribution(dir, []float64{0, 12.5, 1e-7})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, LossDistributionFile), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Loss\n0\n12.5\n1e-07\n", string(content))

	var buf bytes.Buffer
	require.NoError(t, WriteLosses(&buf, nil))
	assert.Equal(t, "Loss\n", buf.String())
}
