package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

// seedFile is the fixture layout accepted by `ledgerctl seed`. Dependents point at
// their case by the case holder's national ID.
type seedFile struct {
	Offices    []seedOffice    `yaml:"offices"`
	Fallen     []seedCase      `yaml:"fallen"`
	Disability []seedCase      `yaml:"disability"`
	Dependents []seedDependent `yaml:"dependents"`
}

type seedOffice struct {
	Name          string   `yaml:"name"`
	Location      string   `yaml:"location"`
	ContactPerson string   `yaml:"contact_person"`
	Phone         string   `yaml:"phone"`
	DocsFallen    []string `yaml:"required_docs_fallen"`
	DocsInjury    []string `yaml:"required_docs_disability"`
}

type seedCase struct {
	FullName   string `yaml:"full_name"`
	NationalID string `yaml:"national_id"`
	Office     string `yaml:"office"`
	Status     string `yaml:"status"`
	Grant      string `yaml:"last_grant_amount"`
	Date       string `yaml:"date"`
	Rank       string `yaml:"rank"`
	InjuryType string `yaml:"injury_type"`
	Percentage int    `yaml:"disability_percentage"`
	Count      int    `yaml:"beneficiary_count"`
}

type seedDependent struct {
	FullName     string `yaml:"full_name"`
	NationalID   string `yaml:"national_id"`
	Relationship string `yaml:"relationship"`
	Category     string `yaml:"case_category"`
	Case         string `yaml:"case_national_id"`
	Status       string `yaml:"status"`
	Benefit      string `yaml:"benefit_amount"`
	Grant        string `yaml:"last_grant_amount"`
}

// SeedResult counts the records a seed run created.
type SeedResult struct {
	Offices, Fallen, Disability, Dependents int
}

func newSeedCmd(open Opener) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load offices and case records from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			deps, cleanup, err := openDeps(cmd, open)
			if err != nil {
				return err
			}
			defer cleanup()
			if deps.Records == nil {
				return errors.New("seed: record store not configured")
			}
			res, err := Seed(cmd.Context(), *deps.Records, raw)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "offices=%d fallen=%d disability=%d dependents=%d\n",
				res.Offices, res.Fallen, res.Disability, res.Dependents)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Fixture path (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// Seed validates every fixture entry before writing any, then creates them in
// dependency order.
func Seed(ctx context.Context, repo records.Repository, raw []byte) (SeedResult, error) {
	var fixture seedFile
	if err := yaml.Unmarshal(raw, &fixture); err != nil {
		return SeedResult{}, fmt.Errorf("seed: parse fixture: %w", err)
	}
	plan, err := buildPlan(fixture)
	if err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	for _, o := range plan.offices {
		if _, err := repo.Offices.Create(ctx, o); err != nil {
			return res, fmt.Errorf("seed: office %s: %w", o.Name, err)
		}
		res.Offices++
	}
	caseIDs := make(map[string]string)
	for _, f := range plan.fallen {
		created, err := repo.Fallen.Create(ctx, f)
		if err != nil {
			return res, fmt.Errorf("seed: fallen %s: %w", f.NationalID, err)
		}
		caseIDs[records.CaseKey(access.CategoryFallen, f.NationalID)] = created.ID
		res.Fallen++
	}
	for _, d := range plan.disability {
		created, err := repo.Disability.Create(ctx, d)
		if err != nil {
			return res, fmt.Errorf("seed: disability %s: %w", d.NationalID, err)
		}
		caseIDs[records.CaseKey(access.CategoryDisability, d.NationalID)] = created.ID
		res.Disability++
	}
	for i, d := range plan.dependents {
		id, ok := caseIDs[records.CaseKey(d.CaseCategory, plan.dependentCases[i])]
		if !ok {
			return res, fmt.Errorf("seed: dependent %s: unknown case %s", d.NationalID, plan.dependentCases[i])
		}
		d.CaseID = id
		if _, err := repo.Dependents.Create(ctx, d); err != nil {
			return res, fmt.Errorf("seed: dependent %s: %w", d.NationalID, err)
		}
		res.Dependents++
	}
	return res, nil
}

type seedPlan struct {
	offices        []records.Office
	fallen         []records.FallenPerson
	disability     []records.DisabilityCase
	dependents     []records.Dependent
	dependentCases []string
}

func buildPlan(f seedFile) (seedPlan, error) {
	v := records.NewValidator()
	var plan seedPlan
	known := make(map[string]bool)

	for _, o := range f.Offices {
		office := records.Office{
			Name: o.Name, Location: o.Location, ContactPerson: o.ContactPerson, Phone: o.Phone,
			RequiredDocsFallen: o.DocsFallen, RequiredDocsDisability: o.DocsInjury,
		}
		if err := check(v, office, "office", o.Name); err != nil {
			return plan, err
		}
		plan.offices = append(plan.offices, office)
	}
	for _, c := range f.Fallen {
		grant, err := amount(c.Grant)
		if err != nil {
			return plan, fmt.Errorf("seed: fallen %s: %w", c.NationalID, err)
		}
		date, _ := records.ParseDate(c.Date)
		person := records.FallenPerson{
			FullName: c.FullName, NationalID: c.NationalID, Office: c.Office, Rank: c.Rank,
			EventDate: date, Status: status(c.Status), LastGrantAmount: grant,
		}
		if err := check(v, person, "fallen", c.NationalID); err != nil {
			return plan, err
		}
		known[records.CaseKey(access.CategoryFallen, c.NationalID)] = true
		plan.fallen = append(plan.fallen, person)
	}
	for _, c := range f.Disability {
		grant, err := amount(c.Grant)
		if err != nil {
			return plan, fmt.Errorf("seed: disability %s: %w", c.NationalID, err)
		}
		date, _ := records.ParseDate(c.Date)
		injury := records.DisabilityCase{
			FullName: c.FullName, NationalID: c.NationalID, Office: c.Office, InjuryType: c.InjuryType,
			DisabilityPercentage: c.Percentage, BeneficiaryCount: c.Count, LastPaymentDate: date,
			Status: status(c.Status), LastGrantAmount: grant,
		}
		if err := check(v, injury, "disability", c.NationalID); err != nil {
			return plan, err
		}
		known[records.CaseKey(access.CategoryDisability, c.NationalID)] = true
		plan.disability = append(plan.disability, injury)
	}
	for _, d := range f.Dependents {
		benefit, err := amount(d.Benefit)
		if err != nil {
			return plan, fmt.Errorf("seed: dependent %s: %w", d.NationalID, err)
		}
		grant, err := amount(d.Grant)
		if err != nil {
			return plan, fmt.Errorf("seed: dependent %s: %w", d.NationalID, err)
		}
		cat := access.CategoryFallen
		if d.Category == string(access.CategoryDisability) {
			cat = access.CategoryDisability
		}
		if !known[records.CaseKey(cat, d.Case)] {
			return plan, fmt.Errorf("seed: dependent %s: unknown case %s", d.NationalID, d.Case)
		}
		dep := records.Dependent{
			FullName: d.FullName, NationalID: d.NationalID, Relationship: d.Relationship,
			CaseCategory: cat, CaseID: "pending", Status: status(d.Status),
			BenefitAmount: benefit, LastGrantAmount: grant,
		}
		if err := check(v, dep, "dependent", d.NationalID); err != nil {
			return plan, err
		}
		plan.dependents = append(plan.dependents, dep)
		plan.dependentCases = append(plan.dependentCases, d.Case)
	}
	return plan, nil
}

func check(v *validator.Validate, item any, kind, ref string) error {
	if err := records.Validate(v, item); err != nil {
		return fmt.Errorf("seed: %s %s: %w", kind, ref, err)
	}
	return nil
}

func amount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// status keeps unknown values verbatim so validation rejects them.
func status(raw string) records.Status {
	if s, ok := records.ParseStatus(raw); ok {
		return s
	}
	return records.Status(raw)
}
