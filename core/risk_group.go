package core

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RiskGroup is a set of borrowers sharing one idiosyncratic group draw per trial
type RiskGroup struct {
	Id        string
	borrowers []*Borrower
}

func NewRiskGroup(id string) *RiskGroup {
	return &RiskGroup{Id: id}
}

func (rg *RiskGroup) AddBorrower(b *Borrower) {
	rg.borrowers = append(rg.borrowers, b)
}

// Borrowers returns the members in draw order, callers must not modify the slice
func (rg *RiskGroup) Borrowers() []*Borrower {
	return rg.borrowers
}

func (rg *RiskGroup) NumBorrowers() int {
	return len(rg.borrowers)
}

// SetNorm sets the norm of every borrower given the portfolio covariance
func (rg *RiskGroup) SetNorm(cov mat.Symmetric) error {
	for _, b := range rg.borrowers {
		if err := b.SetNorm(cov); err != nil {
			return fmt.Errorf("risk group %s: %w", rg.Id, err)
		}
	}
	return nil
}
