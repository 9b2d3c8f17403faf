// Package inventory turns unit-type declarations into a concrete unit
// inventory and answers questions about it: which units exist, which one to
// hand to a new tenant and what the property's occupancy aggregate is.
// Everything here is pure; persistence lives in the repository package.
package inventory

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stwalsh4118/rentledger/api/internal/domainerr"
	"github.com/stwalsh4118/rentledger/api/internal/models"
)

// MaxUnitsPerDeclaration bounds how many units one declaration may expand to.
const MaxUnitsPerDeclaration = 500

// BillingReferenceSeparator joins the property prefix and the unit number.
const BillingReferenceSeparator = "#"

// Label is a parsed unit label such as "A12".
type Label struct {
	Prefix string
	Number int
	// HasNumber is false when the label had no trailing digits and Number
	// fell back to 1.
	HasNumber bool
	// Overflow is true when the trailing digits do not fit in an int.
	Overflow bool
}

// ParseLabel splits a unit label into its leading alphabetic run and its
// trailing integer. A label without trailing digits numbers as 1.
func ParseLabel(label string) Label {
	label = strings.TrimSpace(label)

	prefixEnd := 0
	for i, r := range label {
		if !unicode.IsLetter(r) {
			break
		}
		prefixEnd = i + utf8.RuneLen(r)
	}

	digitsStart := len(label)
	for digitsStart > 0 && label[digitsStart-1] >= '0' && label[digitsStart-1] <= '9' {
		digitsStart--
	}

	parsed := Label{Prefix: label[:prefixEnd], Number: 1}
	if digitsStart < len(label) {
		parsed.HasNumber = true
		n, err := strconv.Atoi(label[digitsStart:])
		if err != nil {
			parsed.Overflow = true
		} else {
			parsed.Number = n
		}
	}
	return parsed
}

// BillingReference builds the reference a tenant quotes when paying.
func BillingReference(propertyPrefix, unitNumber string) string {
	return propertyPrefix + BillingReferenceSeparator + unitNumber
}

// ExpandDeclaration generates one unit per number in the declaration's
// inclusive range, in ascending order. The result is empty when the end
// number precedes the start number; callers validate before expanding.
// PropertyID and Position are left for the caller to fill in.
func ExpandDeclaration(decl models.UnitTypeDeclaration, propertyPrefix string) []models.Unit {
	start := ParseLabel(decl.StartLabel)
	end := ParseLabel(decl.EndLabel)
	if end.Number < start.Number {
		return []models.Unit{}
	}

	rent := models.RoundMoney(decl.RentAmount)
	units := make([]models.Unit, 0, end.Number-start.Number+1)
	for i := start.Number; i <= end.Number; i++ {
		unitNumber := start.Prefix + strconv.Itoa(i)
		units = append(units, models.Unit{
			UnitNumber:       unitNumber,
			UnitType:         strings.TrimSpace(decl.Type),
			RentAmount:       rent,
			BillingReference: BillingReference(propertyPrefix, unitNumber),
			Description:      decl.Description,
		})
	}
	return units
}

// ExpandAll expands every declaration in order and assigns generation
// positions across the whole inventory.
func ExpandAll(decls []models.UnitTypeDeclaration, propertyPrefix string) []models.Unit {
	var all []models.Unit
	for _, decl := range decls {
		all = append(all, ExpandDeclaration(decl, propertyPrefix)...)
	}
	for i := range all {
		all[i].Position = i
	}
	if all == nil {
		all = []models.Unit{}
	}
	return all
}

// ValidateBillingPrefix checks the property prefix used in billing references.
func ValidateBillingPrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return domainerr.Validation("billing prefix is required")
	}
	if strings.ContainsAny(prefix, BillingReferenceSeparator+" \t\n") {
		return domainerr.Validation("billing prefix %q must not contain whitespace or %q", prefix, BillingReferenceSeparator)
	}
	return nil
}

// numericRange is the interval a declaration covers under one prefix.
type numericRange struct {
	prefix string
	start  int
	end    int
	index  int
}

// ValidateDeclarations rejects malformed declarations with a validation
// error and overlapping ones with ErrOverlappingUnitRanges.
func ValidateDeclarations(decls []models.UnitTypeDeclaration) error {
	if len(decls) == 0 {
		return domainerr.Validation("at least one unit type is required")
	}

	ranges := make([]numericRange, 0, len(decls))
	for i, decl := range decls {
		r, err := validateDeclaration(i, decl)
		if err != nil {
			return err
		}
		ranges = append(ranges, r)
	}

	sort.SliceStable(ranges, func(a, b int) bool {
		if ranges[a].prefix != ranges[b].prefix {
			return ranges[a].prefix < ranges[b].prefix
		}
		return ranges[a].start < ranges[b].start
	})
	for i := 1; i < len(ranges); i++ {
		prev, cur := ranges[i-1], ranges[i]
		if prev.prefix == cur.prefix && cur.start <= prev.end {
			return domainerr.Wrapf(domainerr.ErrOverlappingUnitRanges,
				"unit types %d and %d both cover %s%d", prev.index+1, cur.index+1, cur.prefix, cur.start)
		}
	}
	return nil
}

func validateDeclaration(i int, decl models.UnitTypeDeclaration) (numericRange, error) {
	n := i + 1
	if strings.TrimSpace(decl.Type) == "" {
		return numericRange{}, domainerr.Validation("unit type %d: type is required", n)
	}
	if strings.TrimSpace(decl.StartLabel) == "" || strings.TrimSpace(decl.EndLabel) == "" {
		return numericRange{}, domainerr.Validation("unit type %d: start and end labels are required", n)
	}
	if !decl.RentAmount.GreaterThan(decimal.Zero) {
		return numericRange{}, domainerr.Validation("unit type %d: rent must be greater than zero", n)
	}

	start := ParseLabel(decl.StartLabel)
	end := ParseLabel(decl.EndLabel)
	if start.Overflow || end.Overflow {
		return numericRange{}, domainerr.Validation("unit type %d: unit number in %q..%q is out of range", n, decl.StartLabel, decl.EndLabel)
	}
	if end.Prefix != "" && end.Prefix != start.Prefix {
		return numericRange{}, domainerr.Validation("unit type %d: end label %q does not share prefix %q", n, decl.EndLabel, start.Prefix)
	}
	if end.Number < start.Number {
		return numericRange{}, domainerr.Validation("unit type %d: end label %q precedes start label %q", n, decl.EndLabel, decl.StartLabel)
	}
	if count := end.Number - start.Number + 1; count > MaxUnitsPerDeclaration {
		return numericRange{}, domainerr.Validation("unit type %d: %d units exceeds the limit of %d", n, count, MaxUnitsPerDeclaration)
	}

	return numericRange{prefix: start.Prefix, start: start.Number, end: end.Number, index: i}, nil
}
