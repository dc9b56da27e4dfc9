package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	m "cpm/data/models"
)

const (
	CovarianceFile       = "correlation_matrix.csv"
	BorrowerFile         = "borrower.csv"
	MigrationFile        = "transition_probabilities.csv"
	RiskFactorFile       = "risk_factors.csv"
	ExposureFile         = "exposures.csv"
	ValuationFile        = "valuations.csv"
	LossDistributionFile = "loss_distribution.csv"
)

// ReadPortfolioInput reads the six input files from dir
func ReadPortfolioInput(dir string) (*m.PortfolioInput, error) {
	var (
		pi  m.PortfolioInput
		err error
	)

	if pi.Covariance, err = ReadRecordsFromFile[m.CovarianceCell](filepath.Join(dir, CovarianceFile)); err != nil {
		return nil, err
	}
	if pi.Borrowers, err = ReadRecordsFromFile[m.BorrowerRecord](filepath.Join(dir, BorrowerFile)); err != nil {
		return nil, err
	}
	if pi.MigrationProbs, err = ReadRecordsFromFile[m.MigrationProbability](filepath.Join(dir, MigrationFile)); err != nil {
		return nil, err
	}
	if pi.RiskFactors, err = ReadRecordsFromFile[m.RiskFactorWeight](filepath.Join(dir, RiskFactorFile)); err != nil {
		return nil, err
	}
	if pi.Exposures, err = ReadRecordsFromFile[m.ExposureRecord](filepath.Join(dir, ExposureFile)); err != nil {
		return nil, err
	}
	if pi.Valuations, err = ReadRecordsFromFile[m.Valuation](filepath.Join(dir, ValuationFile)); err != nil {
		return nil, err
	}

	return &pi, nil
}

func ReadRecordsFromFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening input file %s: %w", path, err)
	}
	defer f.Close()

	res, err := ReadRecords[T](f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filepath.Base(path), err)
	}
	return res, nil
}

// ReadRecords decodes csv rows into T, columns are matched to the csv tags of T by the header row.
// Every tagged field has to be present in the header.
func ReadRecords[T any](r io.Reader) ([]T, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("missing header row")
		}
		return nil, err
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.TrimSpace(h)] = i
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("ReadRecords: expected struct, got %s", typ.Kind())
	}

	// field index -> column index
	fieldColumns := make(map[int]int, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("csv")
		if tag == "" {
			continue
		}
		col, ok := columns[tag]
		if !ok {
			return nil, fmt.Errorf("missing column %q", tag)
		}
		fieldColumns[i] = col
	}

	var res []T
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		var rec T
		v := reflect.ValueOf(&rec).Elem()
		for field, col := range fieldColumns {
			if err := setField(v.Field(field), strings.TrimSpace(row[col])); err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, header[col], err)
			}
		}
		res = append(res, rec)
	}

	return res, nil
}

func setField(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(v)
	case reflect.Float64, reflect.Float32:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		field.SetFloat(v)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// WriteLossDistribution writes one trial loss per row under a Loss header
func WriteLossDistribution(dir string, losses []float64) (string, error) {
	path := filepath.Join(dir, LossDistributionFile)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating loss distribution file: %w", err)
	}
	defer f.Close()

	if err := WriteLosses(f, losses); err != nil {
		return "", fmt.Errorf("error writing loss distribution file: %w", err)
	}

	return path, f.Close()
}

func WriteLosses(w io.Writer, losses []float64) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Loss"}); err != nil {
		return err
	}
	for _, l := range losses {
		if err := writer.Write([]string{strconv.FormatFloat(l, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
