package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

const fixture = `
offices:
  - name: مكتب طرابلس الرئيسي
    location: طرابلس
fallen:
  - full_name: علي سالم
    national_id: "100"
    office: مكتب طرابلس الرئيسي
    status: مستوفي
    last_grant_amount: "500.50"
    date: "2015-06-01"
disability:
  - full_name: سالم علي
    national_id: "300"
    office: مكتب طرابلس الرئيسي
    status: in_progress
    disability_percentage: 40
dependents:
  - full_name: مريم علي
    national_id: "101"
    relationship: ابنة
    case_national_id: "100"
    status: fulfilled
    benefit_amount: "120"
  - full_name: عمر سالم
    national_id: "301"
    case_category: disability
    case_national_id: "300"
    status: suspended
`

func TestSeedCreatesLinkedRecords(t *testing.T) {
	store := records.NewMemoryStore(records.Snapshot{}, nil)
	repo := store.Repository()

	res, err := Seed(context.Background(), repo, []byte(fixture))
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Offices: 1, Fallen: 1, Disability: 1, Dependents: 2}, res)

	fallen, err := repo.Fallen.List(context.Background())
	require.NoError(t, err)
	require.Len(t, fallen, 1)
	assert.Equal(t, records.StatusFulfilled, fallen[0].Status)
	assert.Equal(t, "500.5", fallen[0].LastGrantAmount.String())
	assert.Equal(t, "2015-06-01", records.FormatDate(fallen[0].EventDate))

	injured, err := repo.Disability.List(context.Background())
	require.NoError(t, err)
	require.Len(t, injured, 1)

	deps, err := repo.Dependents.List(context.Background())
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, fallen[0].ID, deps[0].CaseID)
	assert.Equal(t, access.CategoryFallen, deps[0].CaseCategory)
	assert.Equal(t, injured[0].ID, deps[1].CaseID)
	assert.Equal(t, access.CategoryDisability, deps[1].CaseCategory)
}

func TestSeedRejectsBeforeWriting(t *testing.T) {
	store := records.NewMemoryStore(records.Snapshot{}, nil)
	repo := store.Repository()

	bad := `
offices:
  - name: بنغازي
fallen:
  - full_name: علي سالم
    national_id: "100"
    status: unknown
`
	_, err := Seed(context.Background(), repo, []byte(bad))
	var verr *records.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "record_status", verr.Fields["status"])

	offices, err := repo.Offices.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, offices)

	orphan := `
dependents:
  - full_name: مريم
    national_id: "1"
    case_national_id: "999"
    status: fulfilled
`
	_, err = Seed(context.Background(), repo, []byte(orphan))
	require.ErrorContains(t, err, "unknown case 999")
}

func TestSeedCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	repo := records.NewMemoryStore(records.Snapshot{}, nil).Repository()
	deps := newDeps(nil)
	deps.Records = &repo

	out, err := run(t, deps, "seed", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "offices=1 fallen=1 disability=1 dependents=2\n", out)
}
