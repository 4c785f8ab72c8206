package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/facturx-engine/internal/decimal"
	"github.com/rezonia/facturx-engine/internal/model"
)

// DateLayout is the accepted calendar date format (YYYY-MM-DD)
const DateLayout = "2006-01-02"

var (
	siretPattern      = regexp.MustCompile(`^\d{14}$`)
	vatNumberPattern  = regexp.MustCompile(`^FR\d{2}\d{9}$`)
	ibanPattern       = regexp.MustCompile(`^FR.{25}$`)
	frPostcodePattern = regexp.MustCompile(`^\d{5}$`)
)

// AcceptedCurrencies lists the invoice currencies accepted without error
var AcceptedCurrencies = []string{"EUR", "USD", "GBP", "CHF", "JPY"}

// AcceptedCountries lists the party countries accepted without warning:
// the European Union, EFTA members, the United Kingdom and Monaco.
var AcceptedCountries = []string{
	"FR", "AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "ES", "FI", "GR", "HR", "HU",
	"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PL", "PT", "RO", "SE", "SI", "SK",
	"CH", "GB", "IS", "LI", "NO", "MC",
}

// DomesticVATRates lists the French VAT rates, in percent
var DomesticVATRates = []decimal.Decimal{
	decimal.NewFromInt(0),
	decimal.RequireFromString("2.1"),
	decimal.RequireFromString("5.5"),
	decimal.RequireFromString("8.5"),
	decimal.NewFromInt(10),
	decimal.NewFromInt(20),
}

// AcceptedUnits lists the UN/ECE Recommendation 20 unit codes accepted
// without warning
var AcceptedUnits = []string{
	"EA", "C62", "H87", "XPP", "SET", "PR",
	"HUR", "MIN", "DAY", "WEE", "MON", "ANN",
	"KGM", "GRM", "TNE", "MTR", "KMT", "MTK", "MTQ", "LTR",
	"KWH", "LS",
}

type party struct {
	label string
	p     *model.Party
}

func parties(inv *model.Invoice) []party {
	return []party{{"vendeur", &inv.Seller}, {"acheteur", &inv.Buyer}}
}

func checkSIRET(inv *model.Invoice, r *Report) {
	for _, pt := range parties(inv) {
		if !siretPattern.MatchString(pt.p.SIRET) {
			r.AddError(fmt.Sprintf("SIRET %s invalide : %s (14 chiffres attendus)", pt.label, pt.p.SIRET))
		}
	}
}

func checkVATNumber(inv *model.Invoice, r *Report) {
	for _, pt := range parties(inv) {
		if !vatNumberPattern.MatchString(pt.p.VATNumber) {
			r.AddError(fmt.Sprintf("N° TVA %s invalide : %s (FR + 11 chiffres attendus)", pt.label, pt.p.VATNumber))
		}
	}
}

func checkIBAN(inv *model.Invoice, r *Report) {
	if !inv.HasIBAN() {
		r.AddWarning("IBAN absent : aucun moyen de paiement par virement ne sera indiqué")
		return
	}
	iban := strings.ReplaceAll(inv.IBAN, " ", "")
	if !ibanPattern.MatchString(iban) {
		r.AddError(fmt.Sprintf("IBAN invalide : %s (FR + 25 caractères attendus)", inv.IBAN))
	}
}

// checkDates validates the issue date, then the due date against it
func checkDates(inv *model.Invoice, r *Report) {
	issued, issueErr := time.Parse(DateLayout, inv.IssueDate)
	if issueErr != nil {
		r.AddError(fmt.Sprintf("Date d'émission invalide : %s (format AAAA-MM-JJ attendu)", inv.IssueDate))
	}

	if strings.TrimSpace(inv.DueDate) == "" {
		r.AddWarning("Date d'échéance absente")
		return
	}
	due, err := time.Parse(DateLayout, inv.DueDate)
	if err != nil {
		r.AddError(fmt.Sprintf("Date d'échéance invalide : %s (format AAAA-MM-JJ attendu)", inv.DueDate))
		return
	}
	if issueErr == nil && due.Before(issued) {
		r.AddError(fmt.Sprintf("Date d'échéance %s antérieure à la date d'émission %s", inv.DueDate, inv.IssueDate))
	}
}

func checkPaymentTerms(inv *model.Invoice, r *Report) {
	if strings.TrimSpace(inv.PaymentTerms) == "" {
		r.AddWarning("Conditions de paiement absentes")
	}
}

func checkCurrency(inv *model.Invoice, r *Report) {
	if !contains(AcceptedCurrencies, inv.Currency) {
		r.AddError(fmt.Sprintf("Devise non supportée : %s (attendu : %s)", inv.Currency, strings.Join(AcceptedCurrencies, ", ")))
	}
}

func checkCountries(inv *model.Invoice, r *Report) {
	for _, pt := range parties(inv) {
		if !contains(AcceptedCountries, pt.p.Address.Country) {
			r.AddWarning(fmt.Sprintf("Pays %s non reconnu : %s", pt.label, pt.p.Address.Country))
		}
	}
}

func checkPostalCodes(inv *model.Invoice, r *Report) {
	for _, pt := range parties(inv) {
		if pt.p.Address.Country != model.DefaultCountry {
			continue
		}
		if !frPostcodePattern.MatchString(pt.p.Address.PostalCode) {
			r.AddError(fmt.Sprintf("Code postal %s invalide : %s (5 chiffres attendus)", pt.label, pt.p.Address.PostalCode))
		}
	}
}

// checkLines reports per-line findings; lines are numbered from 1
func checkLines(inv *model.Invoice, r *Report) {
	for i, l := range inv.Lines {
		n := i + 1
		if !l.InRange() {
			r.AddError(fmt.Sprintf("Ligne %d : valeur numérique hors plage (%d chiffres max)", n, money.MaxPrecision))
			continue
		}
		if !money.IsPositive(l.Quantity) {
			r.AddError(fmt.Sprintf("Ligne %d : quantité doit être > 0 (reçu %s)", n, l.Quantity.String()))
		}
		if !money.IsNonNegative(l.UnitPrice) {
			r.AddError(fmt.Sprintf("Ligne %d : prix unitaire doit être >= 0 (reçu %s)", n, l.UnitPrice.String()))
		}
		if !isDomesticRate(l.VATRate) {
			r.AddWarning(fmt.Sprintf("Ligne %d : taux de TVA %s%% hors taux français", n, l.VATRate.String()))
		}
		if !contains(AcceptedUnits, l.Unit) {
			r.AddWarning(fmt.Sprintf("Ligne %d : unité %s non reconnue", n, l.Unit))
		}
	}
}

func isDomesticRate(rate decimal.Decimal) bool {
	for _, allowed := range DomesticVATRates {
		if rate.Equal(allowed) {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
