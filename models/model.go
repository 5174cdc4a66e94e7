package models

import (
	"strconv"
	"strings"
)

// Instrument identifies a tradable carbon credit: a credit type and vintage
// year, optionally narrowed to a single project.
type Instrument struct {
	CreditType  string `json:"credit_type" gorm:"column:credit_type"`
	VintageYear int    `json:"vintage_year" gorm:"column:vintage_year"`
	ProjectID   string `json:"project_id" gorm:"column:project_id"`
}

func NewInstrument(creditType string, vintage int, projectID string) Instrument {
	return Instrument{
		CreditType:  strings.ToUpper(strings.TrimSpace(creditType)),
		VintageYear: vintage,
		ProjectID:   strings.TrimSpace(projectID),
	}
}

// Key is the order book key, CREDIT:VINTAGE[:PROJECT].
func (i Instrument) Key() string {
	key := strings.ToUpper(i.CreditType) + ":" + strconv.Itoa(i.VintageYear)
	if len(i.ProjectID) > 0 {
		key += ":" + i.ProjectID
	}

	return key
}

func (i Instrument) String() string {
	return i.Key()
}

func ParseInstrumentKey(key string) (Instrument, bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return Instrument{}, false
	}

	vintage, err := strconv.Atoi(parts[1])
	if err != nil {
		return Instrument{}, false
	}

	project := ""
	if len(parts) == 3 {
		project = parts[2]
	}

	return NewInstrument(parts[0], vintage, project), true
}

type Reference struct {
	ID   int64
	Type string
}
